package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	// OnRetry, when set, is told about every failed attempt that will be retried.
	OnRetry func(err error, wait time.Duration)
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
	}
}

func ReadOnlyTxOptions() TxOptions {
	opts := DefaultTxOptions()
	opts.ReadOnly = true
	return opts
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithRetry runs fn in a fresh transaction per attempt. Deadlocks, lock
// timeouts, serialization failures and optimistic conflicts are retried with
// jittered exponential backoff; every other error is returned at once.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.25
	policy.MaxElapsedTime = 0

	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := WithTransaction(ctx, db, opts, fn)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if opts.OnRetry != nil {
			opts.OnRetry(err, wait)
		}
	}

	err := backoff.RetryNotify(attempt, b, notify)
	if err != nil && IsRetryable(err) && ctx.Err() == nil {
		return fmt.Errorf("max retries (%d) exceeded: %w", retries, err)
	}
	return err
}
