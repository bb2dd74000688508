package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MappingRepository resolves system-account keys against the
// account_mappings table maintained by the admin surface.
type MappingRepository struct {
	pool *pgxpool.Pool
}

// NewMappingRepository constructs the repository.
func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{pool: pool}
}

// ResolveAccount returns the CoA id configured for the key.
func (r *MappingRepository) ResolveAccount(ctx context.Context, key string) (int64, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return 0, errors.New("ledger: mapping key required")
	}
	var accountID int64
	err := r.pool.QueryRow(ctx, `SELECT coa_id FROM account_mappings WHERE mapping_key=$1`, key).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrMappingNotFound
		}
		return 0, err
	}
	return accountID, nil
}

// StaticMappings is an in-memory MappingSource used by tests and seeds.
type StaticMappings map[string]int64

// ResolveAccount implements MappingSource.
func (m StaticMappings) ResolveAccount(_ context.Context, key string) (int64, error) {
	id, ok := m[key]
	if !ok {
		return 0, ErrMappingNotFound
	}
	return id, nil
}
