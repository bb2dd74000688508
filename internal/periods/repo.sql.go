package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/platform/db"
	"github.com/granite-erp/granite-ledger/internal/stock"
)

// Repository persists accounting periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const periodColumns = `id, code, start_date, end_date, is_closed, closed_at, closed_by, reopened_at, reopened_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.ReopenedAt, &p.ReopenedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// WithTx executes fn within a repeatable-read transaction, retrying once on
// serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("periods repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetByID fetches a period by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1`, id))
}

// FindByDate returns the period covering the civil date.
func (r *Repository) FindByDate(ctx context.Context, civilDate time.Time) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE $1::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, civilDate))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Period{}, ErrNoMatchingPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// List returns all periods ordered by start date.
func (r *Repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) LatestPeriod(ctx context.Context) (Period, bool, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY start_date DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return p, true, nil
}

func (r *txRepository) RangeConflict(ctx context.Context, start, end time.Time) (bool, error) {
	var conflict bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounting_periods WHERE start_date <= $2 AND end_date >= $1)`, start, end).Scan(&conflict)
	return conflict, err
}

func (r *txRepository) InsertPeriod(ctx context.Context, code string, start, end time.Time) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (code, start_date, end_date, is_closed)
VALUES ($1,$2,$3,false) RETURNING `+periodColumns, code, start, end))
}

func (r *txRepository) NextPeriodAfter(ctx context.Context, end time.Time) (Period, bool, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE start_date > $1 ORDER BY start_date ASC LIMIT 1`, end))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return p, true, nil
}

func (r *txRepository) CountDraftLedgers(ctx context.Context, periodID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM ledgers WHERE period_id=$1 AND status='DRAFT'`, periodID).Scan(&count)
	return count, err
}

func (r *txRepository) ClosingBalances(ctx context.Context, periodID int64) ([]glsummary.AccountPeriodBalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
	COALESCE(o.amount, 0),
	COALESCE(SUM(s.debit_total), 0), COALESCE(SUM(s.credit_total), 0)
FROM accounts a
LEFT JOIN gl_opening_balances o ON o.coa_id = a.id AND o.period_id = $1
LEFT JOIN gl_summaries s ON s.coa_id = a.id AND s.period_id = $1
WHERE a.posting_allowed
GROUP BY a.id, a.code, a.name, a.type, o.amount
ORDER BY a.code`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []glsummary.AccountPeriodBalance
	for rows.Next() {
		b := glsummary.AccountPeriodBalance{PeriodID: periodID}
		if err := rows.Scan(&b.AccountID, &b.AccountCode, &b.AccountName, &b.AccountType, &b.Opening, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *txRepository) HasOpeningBalances(ctx context.Context, periodID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM gl_opening_balances WHERE period_id=$1)`, periodID).Scan(&exists)
	return exists, err
}

func (r *txRepository) SeedOpeningBalances(ctx context.Context, periodID int64, balances []glsummary.AccountPeriodBalance) error {
	for _, bal := range balances {
		if _, err := r.tx.Exec(ctx, `INSERT INTO gl_opening_balances (period_id, coa_id, amount)
VALUES ($1,$2,$3)`, periodID, bal.AccountID, bal.Closing().StringFixed(2)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteOpeningBalances(ctx context.Context, periodID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM gl_opening_balances WHERE period_id=$1`, periodID)
	return err
}

func (r *txRepository) HasStockBalances(ctx context.Context, periodID int64) (bool, error) {
	return stock.HasBalances(ctx, r.tx, periodID)
}

func (r *txRepository) RollForwardStock(ctx context.Context, fromPeriodID, toPeriodID int64) (int64, error) {
	return stock.RollForward(ctx, r.tx, fromPeriodID, toPeriodID)
}

func (r *txRepository) DeleteStockBalances(ctx context.Context, periodID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM stock_balances WHERE period_id=$1`, periodID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) MarkClosed(ctx context.Context, periodID, actorID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods
SET is_closed=true, closed_at=NOW(), closed_by=$2, updated_at=NOW()
WHERE id=$1 AND NOT is_closed`, periodID, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodClosed
	}
	return nil
}

func (r *txRepository) MarkReopened(ctx context.Context, periodID, actorID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods
SET is_closed=false, reopened_at=NOW(), reopened_by=$2, updated_at=NOW()
WHERE id=$1 AND is_closed`, periodID, actorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPeriodOpen
	}
	return nil
}
