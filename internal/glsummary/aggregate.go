package glsummary

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is one line of a posted or voided ledger as read back for
// rebuilds and integrity checks.
type LedgerLine struct {
	AccountID int64
	Date      time.Time
	Status    string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

type bucketKey struct {
	accountID int64
	date      time.Time
}

// AggregateLines folds ledger lines into summary deltas, one per
// account/date bucket, ordered by account then date. Lines of posted
// ledgers contribute their amounts; lines of voided ledgers contribute
// zero but still create their bucket, matching the zero-total row that
// incremental maintenance leaves behind when every entry in a bucket is
// voided.
func AggregateLines(periodID int64, lines []LedgerLine) []Delta {
	buckets := make(map[bucketKey]Delta, len(lines))
	for _, line := range lines {
		key := bucketKey{accountID: line.AccountID, date: line.Date}
		d, ok := buckets[key]
		if !ok {
			d = Delta{
				AccountID: line.AccountID,
				PeriodID:  periodID,
				Date:      line.Date,
				Debit:     decimal.Zero,
				Credit:    decimal.Zero,
			}
		}
		if line.Status == "POSTED" {
			d.Debit = d.Debit.Add(line.Debit)
			d.Credit = d.Credit.Add(line.Credit)
		}
		buckets[key] = d
	}
	out := make([]Delta, 0, len(buckets))
	for _, d := range buckets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// DiffSummaries compares stored summary rows against freshly aggregated
// deltas and describes every divergence, including buckets present on
// only one side. An empty result means the stored rows match a rebuild
// exactly.
func DiffSummaries(stored []Summary, fresh []Delta) []string {
	freshByKey := make(map[bucketKey]Delta, len(fresh))
	for _, d := range fresh {
		freshByKey[bucketKey{accountID: d.AccountID, date: d.Date}] = d
	}
	seen := make(map[bucketKey]bool, len(stored))
	var mismatches []string
	for _, s := range stored {
		key := bucketKey{accountID: s.AccountID, date: s.Date}
		seen[key] = true
		f, ok := freshByKey[key]
		if !ok {
			f = Delta{Debit: decimal.Zero, Credit: decimal.Zero}
		}
		if !s.DebitTotal.Equal(f.Debit) || !s.CreditTotal.Equal(f.Credit) {
			mismatches = append(mismatches, fmt.Sprintf(
				"account %d bucket %s: stored %s/%s, rebuilt %s/%s",
				s.AccountID, s.Date.Format("2006-01-02"),
				s.DebitTotal, s.CreditTotal, f.Debit, f.Credit))
		}
	}
	for _, d := range fresh {
		if seen[bucketKey{accountID: d.AccountID, date: d.Date}] {
			continue
		}
		mismatches = append(mismatches, fmt.Sprintf(
			"account %d bucket %s: stored 0/0, rebuilt %s/%s",
			d.AccountID, d.Date.Format("2006-01-02"), d.Debit, d.Credit))
	}
	return mismatches
}
