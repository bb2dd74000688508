package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the storage operations the posting engine needs
// inside one transaction. The period row returned by the period lookups is
// locked for the duration of the transaction, which is what serialises
// posting against period closure.
type TxRepository interface {
	ResolvePeriodForUpdate(ctx context.Context, civilDate time.Time) (periods.Period, error)
	GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error)
	AccountsPostable(ctx context.Context, ids []int64) (map[int64]bool, error)
	NextLedgerNumber(ctx context.Context, scopeKey string) (int64, error)
	InsertLedger(ctx context.Context, entry Ledger) (Ledger, error)
	InsertLines(ctx context.Context, ledgerID int64, lines []Line) error
	LinkSource(ctx context.Context, refType string, sourceID uuid.UUID, ledgerID int64) error
	GetLedgerWithLines(ctx context.Context, id int64) (Ledger, error)
	UpdateLedgerStatus(ctx context.Context, id int64, status Status) error
	ApplySummaryDelta(ctx context.Context, delta glsummary.Delta) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the posting engine: it validates drafts, assigns periods and
// numbers, and commits entries together with their summary deltas.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	numbering NumberingPolicy
	zone      *time.Location
	now       func() time.Time
}

// NewService constructs the posting engine. zone is the fiscal timezone
// used for all date-to-period resolution.
func NewService(repo RepositoryPort, audit AuditPort, numbering NumberingPolicy, zone *time.Location) *Service {
	if zone == nil {
		zone = time.UTC
	}
	return &Service{repo: repo, audit: audit, numbering: numbering, zone: zone, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a draft as a POSTED ledger. Every failure
// path leaves no persisted state behind.
func (s *Service) Post(ctx context.Context, draft Draft) (Ledger, error) {
	if err := draft.Validate(); err != nil {
		return Ledger{}, err
	}

	civilDate := periods.CivilDate(draft.TransactionDate, s.zone)

	var entry Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.ResolvePeriodForUpdate(ctx, civilDate)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return periods.ErrPeriodClosed
		}

		postable, err := tx.AccountsPostable(ctx, draft.AccountIDs())
		if err != nil {
			return err
		}
		for _, id := range draft.AccountIDs() {
			allowed, known := postable[id]
			if !known {
				return fmt.Errorf("%w: account %d", coa.ErrNotFound, id)
			}
			if !allowed {
				return fmt.Errorf("%w: account %d", coa.ErrNonPostableAccount, id)
			}
		}

		scopeKey := s.numbering.ScopeKey(civilDate)
		seq, err := tx.NextLedgerNumber(ctx, scopeKey)
		if err != nil {
			return err
		}

		entry = Ledger{
			Number:          s.numbering.Format(scopeKey, seq),
			ReferenceNumber: draft.ReferenceNumber,
			ReferenceType:   draft.ReferenceType,
			SourceID:        draft.SourceID,
			TransactionDate: civilDate,
			PostingDate:     s.now(),
			PeriodID:        period.ID,
			Status:          StatusPosted,
			Currency:        draft.Currency,
			ExchangeRate:    draft.ExchangeRate,
			Description:     draft.Description,
			CreatedBy:       draft.CreatedBy,
		}
		entry, err = tx.InsertLedger(ctx, entry)
		if err != nil {
			return err
		}

		lines := make([]Line, 0, len(draft.Lines))
		for idx, line := range draft.Lines {
			lines = append(lines, Line{
				LedgerID:    entry.ID,
				AccountID:   line.AccountID,
				Debit:       line.Debit,
				Credit:      line.Credit,
				LineNumber:  idx + 1,
				Description: line.Description,
				Reference:   line.Reference,
			})
		}
		if err := tx.InsertLines(ctx, entry.ID, lines); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, draft.ReferenceType, draft.SourceID, entry.ID); err != nil {
			return err
		}

		for _, line := range lines {
			delta := glsummary.Delta{
				AccountID: line.AccountID,
				PeriodID:  period.ID,
				Date:      civilDate,
				Debit:     line.Debit,
				Credit:    line.Credit,
			}
			if err := tx.ApplySummaryDelta(ctx, delta); err != nil {
				return err
			}
		}

		entry.Lines = lines
		return nil
	})
	if err != nil {
		return Ledger{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  draft.CreatedBy,
			Action:   "ledger.post",
			Entity:   "ledger",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"number":         entry.Number,
				"reference_type": entry.ReferenceType,
				"source_id":      entry.SourceID.String(),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// Void flips a POSTED ledger to VOID and subtracts its summary deltas.
// The entry and its lines stay on record for the audit trail.
func (s *Service) Void(ctx context.Context, input VoidInput) (Ledger, error) {
	if input.LedgerID == 0 {
		return Ledger{}, errors.New("ledger: ledger id required")
	}
	var entry Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetLedgerWithLines(ctx, input.LedgerID)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return ErrInvalidStatus
		}
		period, err := tx.GetPeriodForUpdate(ctx, current.PeriodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return periods.ErrPeriodClosed
		}
		if err := tx.UpdateLedgerStatus(ctx, current.ID, StatusVoid); err != nil {
			return err
		}
		for _, line := range current.Lines {
			delta := glsummary.Delta{
				AccountID: line.AccountID,
				PeriodID:  current.PeriodID,
				Date:      current.TransactionDate,
				Debit:     line.Debit.Neg(),
				Credit:    line.Credit.Neg(),
			}
			if err := tx.ApplySummaryDelta(ctx, delta); err != nil {
				return err
			}
		}
		entry = current
		entry.Status = StatusVoid
		return nil
	})
	if err != nil {
		return Ledger{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger.void",
			Entity:   "ledger",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"reason": input.Reason,
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// Get loads one ledger with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Ledger, error) {
	var entry Ledger
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetLedgerWithLines(ctx, id)
		return err
	})
	return entry, err
}
