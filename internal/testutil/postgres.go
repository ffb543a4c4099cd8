// Package testutil starts a throwaway Postgres for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres runs a migrated postgres:14-alpine container for the test and
// tears it down on cleanup. It skips under -short.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	if err := database.Migrate(dsn, database.Up, nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
	})

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	return db
}

var seq atomic.Int64

// CreateUser inserts a user with a unique email.
func CreateUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()
	n := seq.Add(1)
	user, err := store.CreateUser(context.Background(), db, fmt.Sprintf("user%d@example.com", n), fmt.Sprintf("User %d", n))
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

// CreateRecord inserts a record with the given price and stock.
func CreateRecord(t *testing.T, db *sql.DB, price string, stock int) *models.Record {
	t.Helper()
	n := seq.Add(1)
	record, err := store.CreateRecord(context.Background(), db, models.Record{
		Title:  fmt.Sprintf("Album %d", n),
		Artist: "Test Artist",
		Album:  fmt.Sprintf("Album %d", n),
		Genre:  "Jazz",
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
	})
	if err != nil {
		t.Fatalf("Create record: %v", err)
	}
	return record
}
