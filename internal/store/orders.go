package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
)

const orderColumns = `id, user_id, order_number, status, total, shipping_address, payment_method, order_date, updated_at, version`

func GenerateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString())
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.Total,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.OrderDate,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// InsertOrder writes the order and its items, filling in generated ids and
// timestamps on o.
func InsertOrder(ctx context.Context, q database.Querier, o *models.Order) error {
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber()
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, status, total, shipping_address, payment_method, order_date, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), 1)
		 RETURNING id, order_date, updated_at, version`,
		o.UserID, o.OrderNumber, o.Status, o.Total, o.ShippingAddress, o.PaymentMethod,
	).Scan(&o.ID, &o.OrderDate, &o.UpdatedAt, &o.Version)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err := q.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, record_id, title, artist, quantity, price)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			o.ID, item.RecordID, item.Title, item.Artist, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachOrderItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrderForUser hides orders owned by anyone else behind ErrOrderNotFound.
func GetOrderForUser(ctx context.Context, q database.Querier, id, userID int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachOrderItems(ctx, q, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// LockOrder reads the order row (with items) and holds its lock until tx ends.
func LockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err := attachOrderItems(ctx, tx, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrdersForUser returns the user's orders newest first; limit <= 0 means all.
func ListOrdersForUser(ctx context.Context, q database.Querier, userID int64, limit int) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return queryOrders(ctx, q, "list user orders", query, args...)
}

func ListAllOrders(ctx context.Context, q database.Querier) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY order_date DESC, id DESC`
	return queryOrders(ctx, q, "list orders", query)
}

func queryOrders(ctx context.Context, q database.Querier, op, query string, args ...any) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := attachOrderItems(ctx, q, ptrs); err != nil {
		return nil, err
	}

	return orders, nil
}

func attachOrderItems(ctx context.Context, q database.Querier, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, record_id, title, artist, quantity, price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var recordID sql.NullInt64
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&recordID,
			&item.Title,
			&item.Artist,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if recordID.Valid {
			id := recordID.Int64
			item.RecordID = &id
		}
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

func ListOrdersCursor(ctx context.Context, q database.Querier, userID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	if limit < 1 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (order_date, id) < ($2, $3)
		ORDER BY order_date DESC, id DESC
		LIMIT $4`

	orders, err := queryOrders(ctx, q, "list orders", query, userID, cursorData.OrderDate, cursorData.ID, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			OrderDate: last.OrderDate,
			ID:        last.ID,
		})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func UpdateOrderStatus(ctx context.Context, q database.Querier, id int64, status string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound))
}

func DeleteOrder(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound))
}
