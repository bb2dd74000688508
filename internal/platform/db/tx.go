package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPersistence wraps storage failures that survived the retry budget.
var ErrPersistence = errors.New("platform/db: persistence failure")

// WithTx executes fn within a repeatable-read transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// WithTxRetry runs fn like WithTx but retries exactly once when the
// transaction aborts on a serialization conflict or deadlock. The second
// failure is surfaced as ErrPersistence so callers can map it uniformly.
func WithTxRetry(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	err := WithTx(ctx, pool, fn)
	if err == nil || !IsRetryable(err) {
		return err
	}
	if err = WithTx(ctx, pool, fn); err != nil {
		if IsRetryable(err) {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return err
	}
	return nil
}

// IsRetryable reports whether the error is a transient transaction abort.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
