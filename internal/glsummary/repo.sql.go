package glsummary

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/granite-erp/granite-ledger/internal/platform/db"
)

// ApplyDelta adds one posting's debit/credit movement into its summary
// bucket. The additive upsert runs under the caller's transaction and
// holds the row lock until commit, so concurrent postings against the
// same bucket serialise instead of overwriting each other.
func ApplyDelta(ctx context.Context, tx pgx.Tx, delta Delta) error {
	_, err := tx.Exec(ctx, `INSERT INTO gl_summaries (coa_id, period_id, bucket_date, debit_total, credit_total)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (coa_id, period_id, bucket_date)
DO UPDATE SET debit_total = gl_summaries.debit_total + EXCLUDED.debit_total,
	credit_total = gl_summaries.credit_total + EXCLUDED.credit_total,
	updated_at = NOW()`,
		delta.AccountID, delta.PeriodID, delta.Date, delta.Debit.StringFixed(2), delta.Credit.StringFixed(2))
	return err
}

// Repository reads and rebuilds summary rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const summaryColumns = `id, coa_id, period_id, bucket_date, debit_total, credit_total, updated_at`

// rebuildLines reads back every line of a posted or voided ledger in the
// period. Voided ledgers are included so their zero-total buckets survive
// a rebuild, exactly as incremental maintenance leaves them after a void.
const rebuildLines = `SELECT l.coa_id, e.transaction_date, e.status, l.debit_amount, l.credit_amount
FROM ledger_lines l
JOIN ledgers e ON e.id = l.ledger_id
WHERE e.period_id = $1 AND e.status IN ('POSTED','VOID')`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func periodLines(ctx context.Context, q querier, periodID int64) ([]LedgerLine, error) {
	rows, err := q.Query(ctx, rebuildLines, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LedgerLine
	for rows.Next() {
		var line LedgerLine
		if err := rows.Scan(&line.AccountID, &line.Date, &line.Status, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns summary rows for a period, optionally narrowed to one account.
func (r *Repository) List(ctx context.Context, periodID, accountID int64) ([]Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM gl_summaries WHERE period_id=$1`
	args := []any{periodID}
	if accountID != 0 {
		args = append(args, accountID)
		query += fmt.Sprintf(" AND coa_id=$%d", len(args))
	}
	query += ` ORDER BY coa_id, bucket_date`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.AccountID, &s.PeriodID, &s.Date, &s.DebitTotal, &s.CreditTotal, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Rebuild recomputes all summary rows for a period from its ledger
// lines. The replacement is atomic; readers never observe a half-rebuilt
// period. A rebuild of an untouched period reproduces the incrementally
// maintained rows exactly, zero-total buckets included.
func (r *Repository) Rebuild(ctx context.Context, periodID int64) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		lines, err := periodLines(ctx, tx, periodID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM gl_summaries WHERE period_id=$1`, periodID); err != nil {
			return err
		}
		for _, d := range AggregateLines(periodID, lines) {
			if _, err := tx.Exec(ctx, `INSERT INTO gl_summaries (coa_id, period_id, bucket_date, debit_total, credit_total)
VALUES ($1,$2,$3,$4,$5)`,
				d.AccountID, d.PeriodID, d.Date, d.Debit.StringFixed(2), d.Credit.StringFixed(2)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Verify compares stored summary rows for a period against a fresh
// aggregation of its lines and returns a description per divergence.
func (r *Repository) Verify(ctx context.Context, periodID int64) ([]string, error) {
	lines, err := periodLines(ctx, r.pool, periodID)
	if err != nil {
		return nil, err
	}
	stored, err := r.List(ctx, periodID, 0)
	if err != nil {
		return nil, err
	}
	return DiffSummaries(stored, AggregateLines(periodID, lines)), nil
}

// PeriodBalances aggregates summaries and opening balances per account for
// one period, joined with account metadata.
func (r *Repository) PeriodBalances(ctx context.Context, periodID int64) ([]AccountPeriodBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
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
	var out []AccountPeriodBalance
	for rows.Next() {
		b := AccountPeriodBalance{PeriodID: periodID}
		if err := rows.Scan(&b.AccountID, &b.AccountCode, &b.AccountName, &b.AccountType, &b.Opening, &b.Debit, &b.Credit); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
