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

const recordColumns = `id, title, artist, album, genre, price, stock, low_stock_threshold, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	record := &models.Record{}
	err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Artist,
		&record.Album,
		&record.Genre,
		&record.Price,
		&record.Stock,
		&record.LowStockThreshold,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.Version,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func queryRecords(ctx context.Context, q database.Querier, op, query string, args ...any) ([]models.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

// CreateRecord stores a new catalog entry. A zero threshold means the default.
func CreateRecord(ctx context.Context, q database.Querier, r models.Record) (*models.Record, error) {
	if r.LowStockThreshold == 0 {
		r.LowStockThreshold = models.DefaultLowStockThreshold
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO records (title, artist, album, genre, price, stock, low_stock_threshold, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + recordColumns

	record, err := scanRecord(q.QueryRowContext(ctx, query,
		r.Title, r.Artist, r.Album, r.Genre, r.Price, r.Stock, r.LowStockThreshold))
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	return record, nil
}

func GetRecord(ctx context.Context, q database.Querier, id int64) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	record, err := scanRecord(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %d: %w", id, models.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	return record, nil
}

// LockRecord reads a record under a row lock held until tx ends.
func LockRecord(ctx context.Context, tx *sql.Tx, id int64) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1 FOR UPDATE`

	record, err := scanRecord(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %d: %w", id, models.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("lock record: %w", err)
	}

	return record, nil
}

// LockRecords locks every listed record in ascending id order, so two
// checkouts touching the same records always queue instead of deadlocking.
// Missing ids are simply absent from the result.
func LockRecords(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Record, error) {
	locked := make(map[int64]*models.Record, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	records, err := queryRecords(ctx, tx, "lock records", query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for i := range records {
		locked[records[i].ID] = &records[i]
	}
	return locked, nil
}

func ListRecords(ctx context.Context, q database.Querier, page, pageSize int) (*OffsetPage[models.Record], error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + recordColumns + `
		FROM records
		ORDER BY id
		LIMIT $1 OFFSET $2`

	records, err := queryRecords(ctx, q, "list records", query, pageSize, offset)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(records, total, page, pageSize), nil
}

func DeleteRecord(ctx context.Context, q database.Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("record %d: %w", id, models.ErrRecordNotFound))
}

func ListLowStockRecords(ctx context.Context, q database.Querier) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE stock <= low_stock_threshold
		ORDER BY id`
	return queryRecords(ctx, q, "list low stock records", query)
}

func ListOutOfStockRecords(ctx context.Context, q database.Querier) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE stock = 0
		ORDER BY id`
	return queryRecords(ctx, q, "list out of stock records", query)
}

func ListRecordsNeedingRestock(ctx context.Context, q database.Querier) ([]models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE stock <= low_stock_threshold
		ORDER BY stock ASC, id ASC`
	return queryRecords(ctx, q, "list records needing restock", query)
}

func CountLowStockRecords(ctx context.Context, q database.Querier) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE stock <= low_stock_threshold`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count low stock records: %w", err)
	}
	return count, nil
}

func CountOutOfStockRecords(ctx context.Context, q database.Querier) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE stock = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count out of stock records: %w", err)
	}
	return count, nil
}

func SumStock(ctx context.Context, q database.Querier) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(SUM(stock), 0) FROM records`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum stock: %w", err)
	}
	return total, nil
}

// DecrementStock only succeeds when enough stock is left; the WHERE clause
// makes the check and the write a single atomic step.
func DecrementStock(ctx context.Context, q database.Querier, recordID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE records
		 SET stock = stock - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, recordID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &models.InsufficientStockError{RecordID: recordID, Requested: quantity}
	}

	return nil
}

func IncrementStock(ctx context.Context, q database.Querier, recordID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: cannot add negative stock quantity", models.ErrInvalidQuantity)
	}
	result, err := q.ExecContext(ctx,
		`UPDATE records
		 SET stock = stock + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, recordID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("record %d: %w", recordID, models.ErrRecordNotFound))
}

// UpdateRecordStockOptimistic writes stock and threshold only if nobody
// changed the row since version was read.
func UpdateRecordStockOptimistic(ctx context.Context, q database.Querier, r *models.Record) error {
	result, err := q.ExecContext(ctx,
		`UPDATE records
		 SET stock = $1, low_stock_threshold = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $3 AND version = $4`,
		r.Stock, r.LowStockThreshold, r.ID, r.Version)
	if err != nil {
		if database.IsCheckViolation(err) {
			return fmt.Errorf("%w: record %d would go negative", models.ErrInvalidQuantity, r.ID)
		}
		return fmt.Errorf("update stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("record %d version %d: %w", r.ID, r.Version, models.ErrConflict)
	}

	r.Version++
	return nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
