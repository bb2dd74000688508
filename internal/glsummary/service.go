package glsummary

import (
	"context"
	"errors"
)

// Service exposes summary queries, rebuilds, and integrity checks.
type Service struct {
	repo *Repository
}

// NewService constructs the aggregator service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// List returns raw summary buckets for a period.
func (s *Service) List(ctx context.Context, periodID, accountID int64) ([]Summary, error) {
	if periodID == 0 {
		return nil, errors.New("glsummary: period id required")
	}
	return s.repo.List(ctx, periodID, accountID)
}

// Rebuild replaces a period's summary rows from posted lines.
func (s *Service) Rebuild(ctx context.Context, periodID int64) error {
	if periodID == 0 {
		return errors.New("glsummary: period id required")
	}
	return s.repo.Rebuild(ctx, periodID)
}

// Verify reports divergences between stored rows and a fresh aggregation.
// An empty slice means incremental maintenance and rebuild agree.
func (s *Service) Verify(ctx context.Context, periodID int64) ([]string, error) {
	if periodID == 0 {
		return nil, errors.New("glsummary: period id required")
	}
	return s.repo.Verify(ctx, periodID)
}

// TrialBalance aggregates a period into the grouped reporting view.
func (s *Service) TrialBalance(ctx context.Context, periodID int64) (TrialBalance, error) {
	balances, err := s.repo.PeriodBalances(ctx, periodID)
	if err != nil {
		return TrialBalance{}, err
	}
	return BuildTrialBalance(balances), nil
}
