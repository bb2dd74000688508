package coa

import (
	"context"
	"errors"
	"strings"
)

// Store is the persistence surface the registry needs.
type Store interface {
	GetByID(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, filter Filter) ([]Account, error)
	Insert(ctx context.Context, a Account) (Account, error)
	Rename(ctx context.Context, id int64, name string, isActive bool) error
}

// Service exposes the chart of accounts registry to other modules.
type Service struct {
	repo Store
}

// NewService constructs the registry service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// GetByCode returns the account with the given code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Account{}, errors.New("coa: code required")
	}
	return s.repo.GetByCode(ctx, code)
}

// GetByID returns the account with the given id.
func (s *Service) GetByID(ctx context.Context, id int64) (Account, error) {
	if id == 0 {
		return Account{}, errors.New("coa: id required")
	}
	return s.repo.GetByID(ctx, id)
}

// GetPostable resolves an account for the posting engine, rejecting header
// and summary accounts.
func (s *Service) GetPostable(ctx context.Context, id int64) (Account, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !account.PostingAllowed || !account.IsActive {
		return Account{}, ErrNonPostableAccount
	}
	return account, nil
}

// List returns accounts matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, a Account) (Account, error) {
	a.Code = strings.TrimSpace(a.Code)
	if a.Code == "" {
		return Account{}, errors.New("coa: code required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return Account{}, errors.New("coa: name required")
	}
	switch a.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
	default:
		return Account{}, errors.New("coa: unknown account type")
	}
	a.IsActive = true
	return s.repo.Insert(ctx, a)
}

// Rename updates the mutable account attributes.
func (s *Service) Rename(ctx context.Context, id int64, name string, isActive bool) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("coa: name required")
	}
	return s.repo.Rename(ctx, id, name, isActive)
}
