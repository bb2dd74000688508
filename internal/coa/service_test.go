package coa

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	accounts map[int64]Account
	byCode   map[string]Account
	nextID   int64
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[int64]Account),
		byCode:   make(map[string]Account),
		nextID:   1,
	}
}

func (m *mockStore) GetByID(ctx context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *mockStore) GetByCode(ctx context.Context, code string) (Account, error) {
	a, ok := m.byCode[code]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (m *mockStore) List(ctx context.Context, filter Filter) ([]Account, error) {
	out := []Account{}
	for _, a := range m.accounts {
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockStore) Insert(ctx context.Context, a Account) (Account, error) {
	if _, exists := m.byCode[a.Code]; exists {
		return Account{}, ErrDuplicateCode
	}
	a.ID = m.nextID
	m.nextID++
	m.accounts[a.ID] = a
	m.byCode[a.Code] = a
	return a, nil
}

func (m *mockStore) Rename(ctx context.Context, id int64, name string, isActive bool) error {
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Name = name
	a.IsActive = isActive
	m.accounts[id] = a
	m.byCode[a.Code] = a
	return nil
}

func TestCreateAccount(t *testing.T) {
	svc := NewService(newMockStore())
	ctx := context.Background()

	a, err := svc.Create(ctx, Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset, PostingAllowed: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)
	assert.True(t, a.IsActive)
}

func TestCreateAccountUnknownType(t *testing.T) {
	svc := NewService(newMockStore())

	_, err := svc.Create(context.Background(), Account{Code: "1110", Name: "Kas", Type: "CONTRA"})
	require.Error(t, err)
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	svc := NewService(newMockStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Account{Code: "1110", Name: "Kas Kecil", Type: AccountTypeAsset})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCode))
}

func TestGetPostable(t *testing.T) {
	store := newMockStore()
	svc := NewService(store)
	ctx := context.Background()

	postable, err := svc.Create(ctx, Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset, PostingAllowed: true})
	require.NoError(t, err)
	header, err := svc.Create(ctx, Account{Code: "1000", Name: "ASET", Type: AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.GetPostable(ctx, postable.ID)
	require.NoError(t, err)

	_, err = svc.GetPostable(ctx, header.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonPostableAccount))
}

func TestGetPostableInactive(t *testing.T) {
	store := newMockStore()
	svc := NewService(store)
	ctx := context.Background()

	a, err := svc.Create(ctx, Account{Code: "1110", Name: "Kas", Type: AccountTypeAsset, PostingAllowed: true})
	require.NoError(t, err)
	require.NoError(t, svc.Rename(ctx, a.ID, "Kas", false))

	_, err = svc.GetPostable(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonPostableAccount))
}

// The driver raises unique violations as pgx/v5 pgconn errors, possibly
// wrapped; the classifier must catch those and nothing else.
func TestDuplicateCodeClassification(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, isDuplicateCode(dup))
	assert.True(t, isDuplicateCode(fmt.Errorf("insert account: %w", dup)))

	assert.False(t, isDuplicateCode(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicateCode(errors.New("connection reset")))
	assert.False(t, isDuplicateCode(nil))
}

func TestNormalBalance(t *testing.T) {
	assert.Equal(t, "DEBIT", AccountTypeAsset.NormalBalance())
	assert.Equal(t, "DEBIT", AccountTypeExpense.NormalBalance())
	assert.Equal(t, "CREDIT", AccountTypeLiability.NormalBalance())
	assert.Equal(t, "CREDIT", AccountTypeEquity.NormalBalance())
	assert.Equal(t, "CREDIT", AccountTypeRevenue.NormalBalance())
}
