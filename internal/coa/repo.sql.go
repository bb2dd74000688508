package coa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chart of accounts entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, code, name, type, posting_allowed, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.PostingAllowed, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// GetByID fetches an account by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

// GetByCode fetches an account by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
	return scanAccount(row)
}

// List returns accounts matching the filter, ordered by code.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var clauses []string
	var args []any
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.PostingAllowed != nil {
		args = append(args, *filter.PostingAllowed)
		clauses = append(clauses, fmt.Sprintf("posting_allowed=$%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.PostingAllowed, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Insert creates a new account. Codes are unique.
func (r *Repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (code, name, type, posting_allowed, is_active)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`, a.Code, a.Name, a.Type, a.PostingAllowed, a.IsActive)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if isDuplicateCode(err) {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

// isDuplicateCode reports whether err is the unique violation raised when
// an account code already exists.
func isDuplicateCode(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Rename updates the mutable attributes of an account. Code, type, and the
// posting flag stay frozen once the account exists.
func (r *Repository) Rename(ctx context.Context, id int64, name string, isActive bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE accounts SET name=$2, is_active=$3, updated_at=NOW() WHERE id=$1`, id, name, isActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostableIDs returns the subset of ids whose accounts allow posting and are
// active. Used by the posting engine under its own transaction.
func PostableIDs(ctx context.Context, tx pgx.Tx, ids []int64) (map[int64]bool, error) {
	rows, err := tx.Query(ctx, `SELECT id, posting_allowed AND is_active FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var ok bool
		if err := rows.Scan(&id, &ok); err != nil {
			return nil, err
		}
		out[id] = ok
	}
	return out, rows.Err()
}
