package periods

import (
	"errors"
	"fmt"
	"time"
)

// Period represents one accounting month. StartDate and EndDate are civil
// dates in the fiscal timezone, inclusive on both ends. A closed period is
// immutable: no posting, no voiding, only an explicit administrative reopen.
type Period struct {
	ID         int64
	Code       string // MMYYYY
	StartDate  time.Time
	EndDate    time.Time
	IsClosed   bool
	ClosedAt   *time.Time
	ClosedBy   *int64
	ReopenedAt *time.Time
	ReopenedBy *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrNotFound indicates a missing period.
	ErrNotFound = errors.New("periods: period not found")
	// ErrNoMatchingPeriod indicates no period covers the requested date.
	ErrNoMatchingPeriod = errors.New("periods: no period covers date")
	// ErrPeriodClosed indicates posting or voiding into a closed period.
	ErrPeriodClosed = errors.New("periods: period is closed")
	// ErrPeriodOpen indicates an operation that requires a closed period.
	ErrPeriodOpen = errors.New("periods: period is open")
	// ErrUnpostedEntriesExist indicates DRAFT ledgers block closing.
	ErrUnpostedEntriesExist = errors.New("periods: unposted entries exist in period")
	// ErrDuplicateRollover indicates rollover rows already exist for the
	// next period, so running closure again would double the balances.
	ErrDuplicateRollover = errors.New("periods: rollover already performed")
	// ErrPeriodOverlap indicates the requested range conflicts with an
	// existing period.
	ErrPeriodOverlap = errors.New("periods: period overlaps existing range")
	// ErrPeriodGap indicates the new period does not start the day after
	// the latest existing period ends.
	ErrPeriodGap = errors.New("periods: period leaves a gap in the sequence")
)

// CivilDate converts an instant into the civil date of the supplied fiscal
// timezone, returned as midnight UTC so it compares cleanly against DATE
// columns. This is the single date-to-period convention in the system:
// a document stamped 2026-01-31T17:00:00Z is already Feb 1 in UTC+7 and
// must land in February, while 16:00:00Z the same day is still Jan 31 and
// belongs to January.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Covers reports whether the civil date falls inside the period.
func (p Period) Covers(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// CodeFor formats the MMYYYY period code for a civil date.
func CodeFor(date time.Time) string {
	return fmt.Sprintf("%02d%04d", int(date.Month()), date.Year())
}

// NextMonthRange returns the start and end civil dates of the month that
// follows the supplied period.
func NextMonthRange(p Period) (time.Time, time.Time) {
	start := p.EndDate.AddDate(0, 0, 1)
	end := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return start, end
}

// CreateInput captures validation rules for new periods.
type CreateInput struct {
	StartDate time.Time
	EndDate   time.Time
	ActorID   int64
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("periods: start and end date required")
	}
	if in.StartDate.After(in.EndDate) {
		return errors.New("periods: start date cannot be after end date")
	}
	return nil
}
