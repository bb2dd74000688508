package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (Period, error)
	FindByDate(ctx context.Context, civilDate time.Time) (Period, error)
	List(ctx context.Context) ([]Period, error)
}

// TxRepository exposes the storage operations period management needs
// inside one transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	LatestPeriod(ctx context.Context) (Period, bool, error)
	RangeConflict(ctx context.Context, start, end time.Time) (bool, error)
	InsertPeriod(ctx context.Context, code string, start, end time.Time) (Period, error)
	NextPeriodAfter(ctx context.Context, end time.Time) (Period, bool, error)
	CountDraftLedgers(ctx context.Context, periodID int64) (int, error)
	ClosingBalances(ctx context.Context, periodID int64) ([]glsummary.AccountPeriodBalance, error)
	HasOpeningBalances(ctx context.Context, periodID int64) (bool, error)
	SeedOpeningBalances(ctx context.Context, periodID int64, balances []glsummary.AccountPeriodBalance) error
	DeleteOpeningBalances(ctx context.Context, periodID int64) error
	HasStockBalances(ctx context.Context, periodID int64) (bool, error)
	RollForwardStock(ctx context.Context, fromPeriodID, toPeriodID int64) (int64, error)
	DeleteStockBalances(ctx context.Context, periodID int64) (int64, error)
	MarkClosed(ctx context.Context, periodID, actorID int64) error
	MarkReopened(ctx context.Context, periodID, actorID int64) error
}

// AuditPort records period lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker serialises closure of one period across processes.
type Locker interface {
	Acquire(ctx context.Context, periodID int64) error
	Release(ctx context.Context, periodID int64)
}

// Service manages the period lifecycle: creation in sequence, closing
// with balance rollover, and the administrative reopen override.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	locker Locker
	zone   *time.Location
	now    func() time.Time
}

// NewService constructs the period manager. zone is the fiscal timezone.
func NewService(repo RepositoryPort, audit AuditPort, locker Locker, zone *time.Location) *Service {
	if zone == nil {
		zone = time.UTC
	}
	return &Service{repo: repo, audit: audit, locker: locker, zone: zone, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Resolve returns the period covering the instant, using the fiscal
// timezone convention.
func (s *Service) Resolve(ctx context.Context, t time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, CivilDate(t, s.zone))
}

// Get returns one period.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// Create inserts a new period. Periods are created in sequence: the new
// range must start the day after the latest existing period ends, and may
// not overlap any existing range.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		conflict, err := tx.RangeConflict(ctx, in.StartDate, in.EndDate)
		if err != nil {
			return err
		}
		if conflict {
			return ErrPeriodOverlap
		}
		latest, found, err := tx.LatestPeriod(ctx)
		if err != nil {
			return err
		}
		if found && !in.StartDate.Equal(latest.EndDate.AddDate(0, 0, 1)) {
			return ErrPeriodGap
		}
		period, err = tx.InsertPeriod(ctx, CodeFor(in.StartDate), in.StartDate, in.EndDate)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// Close performs month-end closing: it verifies no unposted entries
// remain, rolls GL and stock balances into the next period, and marks the
// period closed. The whole flow is one transaction under an exclusive
// period lock, so a half-closed period (flag set without rollover rows,
// or rollover rows without the flag) can never be observed. Running
// closure twice fails: once on the closed flag, and, should the flag ever
// be reset without deleting the seeded rows, again on the duplicate
// rollover guard.
func (s *Service) Close(ctx context.Context, periodID, actorID int64) (Period, error) {
	if periodID == 0 || actorID == 0 {
		return Period{}, errors.New("periods: period and actor required")
	}
	if s.locker != nil {
		if err := s.locker.Acquire(ctx, periodID); err != nil {
			return Period{}, err
		}
		defer s.locker.Release(ctx, periodID)
	}

	var next Period
	var stockRows int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return ErrPeriodClosed
		}
		drafts, err := tx.CountDraftLedgers(ctx, period.ID)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return fmt.Errorf("%w: %d draft entries", ErrUnpostedEntriesExist, drafts)
		}

		balances, err := tx.ClosingBalances(ctx, period.ID)
		if err != nil {
			return err
		}

		next, err = s.ensureNextPeriod(ctx, tx, period)
		if err != nil {
			return err
		}

		seeded, err := tx.HasOpeningBalances(ctx, next.ID)
		if err != nil {
			return err
		}
		if !seeded {
			seeded, err = tx.HasStockBalances(ctx, next.ID)
			if err != nil {
				return err
			}
		}
		if seeded {
			return ErrDuplicateRollover
		}

		if err := tx.SeedOpeningBalances(ctx, next.ID, balances); err != nil {
			return err
		}
		stockRows, err = tx.RollForwardStock(ctx, period.ID, next.ID)
		if err != nil {
			return err
		}
		return tx.MarkClosed(ctx, period.ID, actorID)
	})
	if err != nil {
		return Period{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "period.close",
			Entity:   "accounting_period",
			EntityID: fmt.Sprintf("%d", periodID),
			Meta: map[string]any{
				"next_period_id": next.ID,
				"stock_rows":     stockRows,
			},
			At: s.now(),
		})
	}
	return s.repo.GetByID(ctx, periodID)
}

// Reopen is the administrative override for a closed period. It removes
// the rollover rows seeded into the following period so that a later
// close starts from a clean slate, and records who reopened and when.
// The following period must still be open.
func (s *Service) Reopen(ctx context.Context, periodID, actorID int64) (Period, error) {
	if periodID == 0 || actorID == 0 {
		return Period{}, errors.New("periods: period and actor required")
	}
	if s.locker != nil {
		if err := s.locker.Acquire(ctx, periodID); err != nil {
			return Period{}, err
		}
		defer s.locker.Release(ctx, periodID)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if !period.IsClosed {
			return ErrPeriodOpen
		}
		next, found, err := tx.NextPeriodAfter(ctx, period.EndDate)
		if err != nil {
			return err
		}
		if found {
			if next.IsClosed {
				return fmt.Errorf("%w: following period already closed", ErrPeriodClosed)
			}
			if err := tx.DeleteOpeningBalances(ctx, next.ID); err != nil {
				return err
			}
			if _, err := tx.DeleteStockBalances(ctx, next.ID); err != nil {
				return err
			}
		}
		return tx.MarkReopened(ctx, period.ID, actorID)
	})
	if err != nil {
		return Period{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "period.reopen",
			Entity:   "accounting_period",
			EntityID: fmt.Sprintf("%d", periodID),
			Meta:     map[string]any{"override": true},
			At:       s.now(),
		})
	}
	return s.repo.GetByID(ctx, periodID)
}

func (s *Service) ensureNextPeriod(ctx context.Context, tx TxRepository, period Period) (Period, error) {
	next, found, err := tx.NextPeriodAfter(ctx, period.EndDate)
	if err != nil {
		return Period{}, err
	}
	if found {
		return next, nil
	}
	start, end := NextMonthRange(period)
	return tx.InsertPeriod(ctx, CodeFor(start), start, end)
}
