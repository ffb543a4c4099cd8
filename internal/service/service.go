// Package service holds the cart, checkout and inventory operations. Every
// mutating call runs as one database transaction; callers get typed errors
// from the models package.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/vinyl-store/internal/database"
	"go.uber.org/zap"
)

type Options struct {
	// MaxRetries bounds how often a transaction is replayed after a
	// deadlock, lock timeout, serialization failure or version conflict.
	MaxRetries int
	// RestockOnCancel returns reserved units to stock when an order is cancelled.
	RestockOnCancel bool
	// RecentOrdersLimit is used when a caller asks for recent orders without a limit.
	RecentOrdersLimit int
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		RecentOrdersLimit: 5,
	}
}

type unitOfWork struct {
	db     *sql.DB
	logger *zap.Logger
	opts   database.TxOptions
}

func newUnitOfWork(db *sql.DB, logger *zap.Logger, maxRetries int) unitOfWork {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := database.DefaultTxOptions()
	opts.MaxRetries = maxRetries
	return unitOfWork{db: db, logger: logger, opts: opts}
}

// write runs fn in a read-committed transaction with retries.
func (u unitOfWork) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	opts := u.opts
	opts.OnRetry = func(err error, wait time.Duration) {
		u.logger.Warn("retrying transaction",
			zap.String("op", op),
			zap.Stringer("class", database.ClassifyError(err)),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return database.Wrap(op, database.WithRetry(ctx, u.db, opts, fn))
}

// read runs fn in a read-only repeatable-read transaction so multi-query
// reads see one snapshot.
func (u unitOfWork) read(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	opts := database.ReadOnlyTxOptions()
	opts.IsolationLevel = sql.LevelRepeatableRead
	return database.Wrap(op, database.WithTransaction(ctx, u.db, opts, fn))
}
