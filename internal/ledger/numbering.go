package ledger

import (
	"fmt"
	"time"
)

// NumberScope selects when ledger number sequences reset. The legacy
// numbering format is undocumented, so the scope is configuration rather
// than a hardcoded guess.
type NumberScope string

const (
	ScopeGlobal  NumberScope = "GLOBAL"
	ScopeYearly  NumberScope = "YEARLY"
	ScopeMonthly NumberScope = "MONTHLY"
)

// NumberingPolicy formats gapless ledger numbers. Sequences are stored per
// scope key and incremented under a row lock, so numbers within a scope
// are monotonic with no gaps.
type NumberingPolicy struct {
	Prefix string
	Scope  NumberScope
}

// ScopeKey returns the sequence bucket for a civil posting date.
func (p NumberingPolicy) ScopeKey(date time.Time) string {
	switch p.Scope {
	case ScopeYearly:
		return fmt.Sprintf("%s-%04d", p.Prefix, date.Year())
	case ScopeMonthly:
		return fmt.Sprintf("%s-%04d%02d", p.Prefix, date.Year(), int(date.Month()))
	default:
		return p.Prefix
	}
}

// Format renders the ledger number for a sequence value within a scope.
func (p NumberingPolicy) Format(scopeKey string, seq int64) string {
	return fmt.Sprintf("%s-%06d", scopeKey, seq)
}
