package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
)

// Users are owned by the identity service; these helpers exist so carts and
// orders have an owner row to reference.

func CreateUser(ctx context.Context, q database.Querier, email, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", models.ErrInvalidArgument)
	}

	user := &models.User{}
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (email, name, created_at, updated_at, version)
		 VALUES ($1, $2, NOW(), NOW(), 1)
		 RETURNING id, email, name, created_at, updated_at, version`,
		email, name).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	user := &models.User{}
	err := q.QueryRowContext(ctx,
		`SELECT id, email, name, created_at, updated_at, version
		 FROM users
		 WHERE id = $1`,
		id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
