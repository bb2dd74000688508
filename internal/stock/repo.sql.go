package stock

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HasBalances reports whether any snapshot rows exist for the period.
// The period manager uses this as its duplicate-rollover guard: re-running
// a close must never insert a second set of snapshots.
func HasBalances(ctx context.Context, tx pgx.Tx, periodID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_balances WHERE period_id=$1)`, periodID).Scan(&exists)
	return exists, err
}

// RollForward copies every snapshot of the closing period into the next
// period, one row per product and warehouse. Runs under the close
// transaction.
func RollForward(ctx context.Context, tx pgx.Tx, fromPeriodID, toPeriodID int64) (int64, error) {
	cmd, err := tx.Exec(ctx, `INSERT INTO stock_balances (period_id, warehouse_id, product_id, qty, value)
SELECT $2, warehouse_id, product_id, qty, value FROM stock_balances WHERE period_id=$1`, fromPeriodID, toPeriodID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// Repository reads stock snapshots outside of close transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByPeriod returns the snapshots for a period ordered by warehouse and
// product.
func (r *Repository) ListByPeriod(ctx context.Context, periodID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, period_id, warehouse_id, product_id, qty, value, created_at, updated_at
FROM stock_balances WHERE period_id=$1 ORDER BY warehouse_id, product_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ID, &b.PeriodID, &b.WarehouseID, &b.ProductID, &b.Qty, &b.Value, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
