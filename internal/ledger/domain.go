package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates ledger lifecycle values.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoid   Status = "VOID"
)

// Ledger is a journal entry header owning a balanced set of lines.
type Ledger struct {
	ID              int64
	Number          string
	ReferenceNumber string
	ReferenceType   string
	SourceID        uuid.UUID
	TransactionDate time.Time
	PostingDate     time.Time
	PeriodID        int64
	Status          Status
	Currency        string
	ExchangeRate    decimal.Decimal
	Description     string
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []Line
}

// Line stores a debit or credit amount for one account. Lines are written
// once at posting time and never updated; voiding flips the header status.
type Line struct {
	ID          int64
	LedgerID    int64
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	LineNumber  int
	Description string
	Reference   string
}

// DraftLine is a candidate line inside a Draft.
type DraftLine struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Reference   string
}

// Draft is a candidate journal entry produced by the Builder or submitted
// as a manual journal. It carries no period: the posting engine resolves
// the period from TransactionDate.
type Draft struct {
	ReferenceNumber string
	ReferenceType   string
	SourceID        uuid.UUID
	TransactionDate time.Time
	Currency        string
	ExchangeRate    decimal.Decimal
	Description     string
	CreatedBy       int64
	Lines           []DraftLine
}

var (
	// ErrUnbalancedEntry indicates sum(debit) != sum(credit).
	ErrUnbalancedEntry = errors.New("ledger: entry lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrNotFound indicates a missing ledger.
	ErrNotFound = errors.New("ledger: entry not found")
	// ErrInvalidStatus indicates the requested transition is not allowed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrSourceAlreadyLinked indicates the source document was posted before.
	ErrSourceAlreadyLinked = errors.New("ledger: source document already posted")
	// ErrMappingNotFound indicates an unconfigured system account key.
	ErrMappingNotFound = errors.New("ledger: account mapping not found")
)

// Validate ensures the draft meets the posting preconditions that do not
// require storage access. Amount comparison is exact: amounts are
// fixed-point decimals and no tolerance is applied.
func (d Draft) Validate() error {
	if d.TransactionDate.IsZero() {
		return errors.New("ledger: transaction date required")
	}
	if d.ReferenceType == "" {
		return errors.New("ledger: reference type required")
	}
	if d.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	if len(d.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for idx, line := range d.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d must carry exactly one of debit or credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry
	}
	return nil
}

// AccountIDs returns the distinct account ids referenced by the draft.
func (d Draft) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(d.Lines))
	ids := make([]int64, 0, len(d.Lines))
	for _, line := range d.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	LedgerID int64
	ActorID  int64
	Reason   string
}
