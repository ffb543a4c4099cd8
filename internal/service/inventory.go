package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/safar/vinyl-store/internal/database"
	"github.com/safar/vinyl-store/internal/models"
	"github.com/safar/vinyl-store/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type InventoryService struct {
	db     *sql.DB
	uow    unitOfWork
	logger *zap.Logger
}

func NewInventoryService(db *sql.DB, logger *zap.Logger, opts Options) *InventoryService {
	uow := newUnitOfWork(db, logger, opts.MaxRetries)
	return &InventoryService{db: db, uow: uow, logger: uow.logger.Named("inventory")}
}

type InventorySummary struct {
	LowStockCount   int64           `json:"low_stock_count"`
	OutOfStockCount int64           `json:"out_of_stock_count"`
	TotalStock      int64           `json:"total_stock"`
	NeedingRestock  []models.Record `json:"needing_restock"`
}

func (s *InventoryService) CreateRecord(ctx context.Context, r models.Record) (*models.Record, error) {
	var record *models.Record
	err := s.uow.write(ctx, "create record", func(tx *sql.Tx) error {
		var err error
		record, err = store.CreateRecord(ctx, tx, r)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("record created", zap.Int64("record_id", record.ID), zap.String("title", record.Title))
	return record, nil
}

func (s *InventoryService) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	record, err := store.GetRecord(ctx, s.db, id)
	return record, database.Wrap("get record", err)
}

func (s *InventoryService) ListRecords(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Record], error) {
	var result *store.OffsetPage[models.Record]
	err := s.uow.read(ctx, "list records", func(tx *sql.Tx) error {
		var err error
		result, err = store.ListRecords(ctx, tx, page, pageSize)
		return err
	})
	return result, err
}

// DeleteRecord takes the record out of every cart and deletes it in the same
// transaction. Past order items keep their title and price snapshot.
func (s *InventoryService) DeleteRecord(ctx context.Context, id int64) error {
	var carts int64
	err := s.uow.write(ctx, "delete record", func(tx *sql.Tx) error {
		var err error
		carts, err = store.DeleteCartItemsForRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		return store.DeleteRecord(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("record deleted", zap.Int64("record_id", id), zap.Int64("carts_purged", carts))
	return nil
}

func (s *InventoryService) AddStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error) {
	return s.adjust(ctx, "add stock", recordID, func(r *models.Record) error {
		return r.AddStock(quantity)
	})
}

func (s *InventoryService) ReduceStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error) {
	return s.adjust(ctx, "reduce stock", recordID, func(r *models.Record) error {
		return r.ReduceStock(quantity)
	})
}

func (s *InventoryService) SetStock(ctx context.Context, recordID int64, quantity int) (*models.Record, error) {
	return s.adjust(ctx, "set stock", recordID, func(r *models.Record) error {
		return r.SetStock(quantity)
	})
}

func (s *InventoryService) UpdateLowStockThreshold(ctx context.Context, recordID int64, threshold int) (*models.Record, error) {
	return s.adjust(ctx, "update low stock threshold", recordID, func(r *models.Record) error {
		return r.UpdateLowStockThreshold(threshold)
	})
}

// adjust reads the record, applies mutate and writes it back guarded by the
// version column. A concurrent checkout or edit bumps the version, which
// fails the write with ErrConflict and replays the whole attempt.
func (s *InventoryService) adjust(ctx context.Context, op string, recordID int64, mutate func(*models.Record) error) (*models.Record, error) {
	var record *models.Record
	err := s.uow.write(ctx, op, func(tx *sql.Tx) error {
		var err error
		record, err = store.GetRecord(ctx, tx, recordID)
		if err != nil {
			return err
		}
		if err := mutate(record); err != nil {
			return err
		}
		return store.UpdateRecordStockOptimistic(ctx, tx, record)
	})
	if err != nil {
		s.logger.Warn("inventory adjustment failed",
			zap.String("op", op),
			zap.Int64("record_id", recordID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("inventory adjusted",
		zap.String("op", op),
		zap.Int64("record_id", recordID),
		zap.Int("stock", record.Stock),
		zap.Int("low_stock_threshold", record.LowStockThreshold),
		zap.Bool("low_stock", record.IsLowStock()),
		zap.Bool("out_of_stock", record.IsOutOfStock()),
	)
	return record, nil
}

// BatchSetStock sets stock for several records at once. Either every record
// is updated or none is.
func (s *InventoryService) BatchSetStock(ctx context.Context, quantities map[int64]int) ([]models.Record, error) {
	ids := make([]int64, 0, len(quantities))
	for id, q := range quantities {
		if q < 0 {
			return nil, fmt.Errorf("%w: stock for record %d cannot be negative", models.ErrInvalidQuantity, id)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var updated []models.Record
	err := s.uow.write(ctx, "batch set stock", func(tx *sql.Tx) error {
		updated = make([]models.Record, 0, len(ids))
		for _, id := range ids {
			record, err := store.LockRecord(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := record.SetStock(quantities[id]); err != nil {
				return err
			}
			if err := store.UpdateRecordStockOptimistic(ctx, tx, record); err != nil {
				return err
			}
			updated = append(updated, *record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("batch stock update", zap.Int("records", len(updated)))
	return updated, nil
}

func (s *InventoryService) LowStockRecords(ctx context.Context) ([]models.Record, error) {
	records, err := store.ListLowStockRecords(ctx, s.db)
	return records, database.Wrap("low stock records", err)
}

func (s *InventoryService) OutOfStockRecords(ctx context.Context) ([]models.Record, error) {
	records, err := store.ListOutOfStockRecords(ctx, s.db)
	return records, database.Wrap("out of stock records", err)
}

// RecordsNeedingRestock lists low-stock records, emptiest first.
func (s *InventoryService) RecordsNeedingRestock(ctx context.Context) ([]models.Record, error) {
	records, err := store.ListRecordsNeedingRestock(ctx, s.db)
	return records, database.Wrap("records needing restock", err)
}

func (s *InventoryService) LowStockCount(ctx context.Context) (int64, error) {
	count, err := store.CountLowStockRecords(ctx, s.db)
	return count, database.Wrap("low stock count", err)
}

// Summary gathers the admin dashboard figures concurrently.
func (s *InventoryService) Summary(ctx context.Context) (*InventorySummary, error) {
	summary := &InventorySummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		summary.LowStockCount, err = store.CountLowStockRecords(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		summary.OutOfStockCount, err = store.CountOutOfStockRecords(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		summary.TotalStock, err = store.SumStock(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		summary.NeedingRestock, err = store.ListRecordsNeedingRestock(gctx, s.db)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, database.Wrap("inventory summary", err)
	}
	return summary, nil
}
