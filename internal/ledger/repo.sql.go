package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/platform/db"
	"github.com/granite-erp/granite-ledger/internal/shared"
)

// Repository persists ledgers and lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction, retrying once on
// serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const periodColumns = `id, code, start_date, end_date, is_closed, closed_at, closed_by, reopened_at, reopened_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (periods.Period, error) {
	var p periods.Period
	err := row.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.IsClosed, &p.ClosedAt, &p.ClosedBy, &p.ReopenedAt, &p.ReopenedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) ResolvePeriodForUpdate(ctx context.Context, civilDate time.Time) (periods.Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE $1::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, civilDate)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, periods.ErrNoMatchingPeriod
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, periodID)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, periods.ErrNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) AccountsPostable(ctx context.Context, ids []int64) (map[int64]bool, error) {
	return coa.PostableIDs(ctx, r.tx, ids)
}

// NextLedgerNumber increments the gapless sequence for the scope. The
// upsert locks the sequence row, so concurrent postings in one scope
// serialise here and never skip or repeat a value.
func (r *txRepository) NextLedgerNumber(ctx context.Context, scopeKey string) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_sequences (scope_key, next_value) VALUES ($1, 1)
ON CONFLICT (scope_key) DO UPDATE SET next_value = ledger_sequences.next_value + 1
RETURNING next_value`, scopeKey).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertLedger(ctx context.Context, entry Ledger) (Ledger, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO ledgers
(number, reference_number, reference_type, source_id, transaction_date, posting_date, period_id, status, currency, exchange_rate, description, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, created_at, updated_at`,
		entry.Number, entry.ReferenceNumber, entry.ReferenceType, entry.SourceID,
		entry.TransactionDate, entry.PostingDate, entry.PeriodID, entry.Status,
		entry.Currency, entry.ExchangeRate.String(), entry.Description, nullInt(entry.CreatedBy))
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Ledger{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, ledgerID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_lines
(ledger_id, coa_id, debit_amount, credit_amount, line_number, description, reference)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			ledgerID, line.AccountID, line.Debit.StringFixed(2), line.Credit.StringFixed(2),
			line.LineNumber, line.Description, line.Reference); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, refType string, sourceID uuid.UUID, ledgerID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (reference_type, source_id, ledger_id) VALUES ($1,$2,$3)`, refType, sourceID, ledgerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

const ledgerColumns = `id, number, reference_number, reference_type, source_id, transaction_date, posting_date, period_id, status, currency, exchange_rate, description, created_by, created_at, updated_at`

func scanLedger(row pgx.Row) (Ledger, error) {
	var e Ledger
	var createdBy *int64
	var rate decimal.Decimal
	err := row.Scan(&e.ID, &e.Number, &e.ReferenceNumber, &e.ReferenceType, &e.SourceID,
		&e.TransactionDate, &e.PostingDate, &e.PeriodID, &e.Status, &e.Currency,
		&rate, &e.Description, &createdBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Ledger{}, err
	}
	e.ExchangeRate = rate
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	return e, nil
}

func (r *txRepository) GetLedgerWithLines(ctx context.Context, id int64) (Ledger, error) {
	entry, err := scanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ledger{}, ErrNotFound
		}
		return Ledger{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, ledger_id, coa_id, debit_amount, credit_amount, line_number, description, reference
FROM ledger_lines WHERE ledger_id=$1 ORDER BY line_number ASC`, id)
	if err != nil {
		return Ledger{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.LedgerID, &line.AccountID, &line.Debit, &line.Credit, &line.LineNumber, &line.Description, &line.Reference); err != nil {
			return Ledger{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Ledger{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateLedgerStatus(ctx context.Context, id int64, status Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledgers SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) ApplySummaryDelta(ctx context.Context, delta glsummary.Delta) error {
	return glsummary.ApplyDelta(ctx, r.tx, delta)
}

// List returns ledgers newest first with pagination metadata.
func (r *Repository) List(ctx context.Context, page, perPage int) ([]Ledger, shared.Pagination, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledgers`).Scan(&total); err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM ledgers ORDER BY id DESC LIMIT $1 OFFSET $2`,
		pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	defer rows.Close()
	var entries []Ledger
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		entries = append(entries, entry)
	}
	return entries, pagination, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
