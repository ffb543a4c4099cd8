package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
)

var ErrCartNotFound = errors.New("cart not found")

func GetCartByUser(ctx context.Context, q database.Querier, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`,
		userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := loadCartItems(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// LockCartByUser reads the user's cart under a row lock held until tx ends.
// Item writes reference the cart row, so they queue behind the lock and the
// items loaded here cannot change before tx finishes.
func LockCartByUser(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	items, err := loadCartItems(ctx, tx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// GetOrCreateCart returns the user's cart, creating an empty one on first use.
func GetOrCreateCart(ctx context.Context, q database.Querier, userID int64) (*models.Cart, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO carts (user_id, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, fmt.Errorf("user %d: %w", userID, models.ErrUserNotFound)
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return GetCartByUser(ctx, q, userID)
}

func loadCartItems(ctx context.Context, q database.Querier, cartID int64) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, cart_id, record_id, quantity
		 FROM cart_items
		 WHERE cart_id = $1
		 ORDER BY id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	var recordIDs []int64
	for rows.Next() {
		var item models.CartItem
		var recordID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.CartID, &recordID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		if recordID.Valid {
			id := recordID.Int64
			item.RecordID = &id
			recordIDs = append(recordIDs, id)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(recordIDs) == 0 {
		return items, nil
	}

	records, err := queryRecords(ctx, q, "get cart records",
		`SELECT `+recordColumns+` FROM records WHERE id = ANY($1)`, pq.Array(recordIDs))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Record, len(records))
	for i := range records {
		byID[records[i].ID] = &records[i]
	}
	for i := range items {
		if items[i].RecordID != nil {
			items[i].Record = byID[*items[i].RecordID]
		}
	}

	return items, nil
}

// UpsertCartItem sets the quantity for a record, replacing any previous value.
func UpsertCartItem(ctx context.Context, q database.Querier, cartID, recordID int64, quantity int) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, record_id, quantity, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (cart_id, record_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		cartID, recordID, quantity)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("record %d: %w", recordID, models.ErrRecordNotFound)
		}
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return touchCart(ctx, q, cartID)
}

func UpdateCartItemQuantity(ctx context.Context, q database.Querier, cartID, recordID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE cart_items
		 SET quantity = $1, updated_at = NOW()
		 WHERE cart_id = $2 AND record_id = $3`,
		quantity, cartID, recordID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if err := expectOneRow(result, fmt.Errorf("record %d: %w", recordID, models.ErrItemNotFound)); err != nil {
		return err
	}
	return touchCart(ctx, q, cartID)
}

func DeleteCartItem(ctx context.Context, q database.Querier, cartID, recordID int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND record_id = $2`,
		cartID, recordID)
	if err != nil {
		return false, fmt.Errorf("delete cart item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	return true, touchCart(ctx, q, cartID)
}

func DeleteCartItemsByID(ctx context.Context, q database.Querier, cartID int64, itemIDs []int64) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND id = ANY($2)`,
		cartID, pq.Array(itemIDs))
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if n > 0 {
		return n, touchCart(ctx, q, cartID)
	}
	return 0, nil
}

func ClearCart(ctx context.Context, q database.Querier, cartID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, touchCart(ctx, q, cartID)
}

// DeleteCartItemsForRecord drops the record from every cart and reports how
// many carts changed.
func DeleteCartItemsForRecord(ctx context.Context, q database.Querier, recordID int64) (int64, error) {
	result, err := q.ExecContext(ctx,
		`WITH removed AS (
		     DELETE FROM cart_items WHERE record_id = $1 RETURNING cart_id
		 )
		 UPDATE carts SET updated_at = NOW()
		 WHERE id IN (SELECT cart_id FROM removed)`,
		recordID)
	if err != nil {
		return 0, fmt.Errorf("purge record from carts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

func touchCart(ctx context.Context, q database.Querier, cartID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
