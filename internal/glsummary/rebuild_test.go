package glsummary

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bucketDay = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// incrementalState mirrors what ApplyDelta leaves in gl_summaries: an
// additive upsert per bucket, so a post followed by its void nets the
// bucket to zero without deleting the row.
type incrementalState map[bucketKey]Delta

func (s incrementalState) apply(d Delta) {
	key := bucketKey{accountID: d.AccountID, date: d.Date}
	cur, ok := s[key]
	if !ok {
		cur = Delta{AccountID: d.AccountID, PeriodID: d.PeriodID, Date: d.Date,
			Debit: decimal.Zero, Credit: decimal.Zero}
	}
	cur.Debit = cur.Debit.Add(d.Debit)
	cur.Credit = cur.Credit.Add(d.Credit)
	s[key] = cur
}

func (s incrementalState) rows() []Summary {
	var out []Summary
	for _, d := range s {
		out = append(out, Summary{
			AccountID:   d.AccountID,
			PeriodID:    d.PeriodID,
			Date:        d.Date,
			DebitTotal:  d.Debit,
			CreditTotal: d.Credit,
		})
	}
	return out
}

func TestRebuildMatchesIncrementalMaintenance(t *testing.T) {
	const periodID = int64(1)

	// Entry one stays posted: debit account 10, credit account 20.
	// Entry two (accounts 30/40) is posted and then voided.
	state := make(incrementalState)
	state.apply(Delta{AccountID: 10, PeriodID: periodID, Date: bucketDay, Debit: dec("1250000.00")})
	state.apply(Delta{AccountID: 20, PeriodID: periodID, Date: bucketDay, Credit: dec("1250000.00")})
	state.apply(Delta{AccountID: 30, PeriodID: periodID, Date: bucketDay, Debit: dec("400000.00")})
	state.apply(Delta{AccountID: 40, PeriodID: periodID, Date: bucketDay, Credit: dec("400000.00")})
	state.apply(Delta{AccountID: 30, PeriodID: periodID, Date: bucketDay, Debit: dec("-400000.00")})
	state.apply(Delta{AccountID: 40, PeriodID: periodID, Date: bucketDay, Credit: dec("-400000.00")})

	lines := []LedgerLine{
		{AccountID: 10, Date: bucketDay, Status: "POSTED", Debit: dec("1250000.00"), Credit: decimal.Zero},
		{AccountID: 20, Date: bucketDay, Status: "POSTED", Debit: decimal.Zero, Credit: dec("1250000.00")},
		{AccountID: 30, Date: bucketDay, Status: "VOID", Debit: dec("400000.00"), Credit: decimal.Zero},
		{AccountID: 40, Date: bucketDay, Status: "VOID", Debit: decimal.Zero, Credit: dec("400000.00")},
	}
	fresh := AggregateLines(periodID, lines)

	// The voided entry's buckets survive with zero totals on both sides.
	require.Len(t, fresh, 4)
	assert.True(t, fresh[2].Debit.IsZero() && fresh[2].Credit.IsZero())
	assert.True(t, fresh[3].Debit.IsZero() && fresh[3].Credit.IsZero())

	assert.Empty(t, DiffSummaries(state.rows(), fresh))
}

func TestAggregateLinesKeepsVoidedBuckets(t *testing.T) {
	lines := []LedgerLine{
		{AccountID: 10, Date: bucketDay, Status: "VOID", Debit: dec("500000.00"), Credit: decimal.Zero},
		{AccountID: 20, Date: bucketDay, Status: "VOID", Debit: decimal.Zero, Credit: dec("500000.00")},
	}
	deltas := AggregateLines(1, lines)
	require.Len(t, deltas, 2)
	for _, d := range deltas {
		assert.True(t, d.Debit.IsZero(), "account %d", d.AccountID)
		assert.True(t, d.Credit.IsZero(), "account %d", d.AccountID)
	}
}

func TestAggregateLinesSumsBucketsAcrossEntries(t *testing.T) {
	otherDay := bucketDay.AddDate(0, 0, 1)
	lines := []LedgerLine{
		{AccountID: 10, Date: bucketDay, Status: "POSTED", Debit: dec("100.00"), Credit: decimal.Zero},
		{AccountID: 10, Date: bucketDay, Status: "POSTED", Debit: dec("150.00"), Credit: decimal.Zero},
		{AccountID: 10, Date: otherDay, Status: "POSTED", Debit: dec("25.00"), Credit: decimal.Zero},
	}
	deltas := AggregateLines(1, lines)
	require.Len(t, deltas, 2)
	assert.True(t, deltas[0].Debit.Equal(dec("250.00")), "got %s", deltas[0].Debit)
	assert.True(t, deltas[1].Debit.Equal(dec("25.00")), "got %s", deltas[1].Debit)
	assert.True(t, deltas[0].Date.Before(deltas[1].Date))
}

func TestDiffSummaries(t *testing.T) {
	stored := []Summary{
		{AccountID: 10, PeriodID: 1, Date: bucketDay, DebitTotal: dec("100.00"), CreditTotal: decimal.Zero},
		{AccountID: 20, PeriodID: 1, Date: bucketDay, DebitTotal: decimal.Zero, CreditTotal: dec("100.00")},
	}
	fresh := []Delta{
		{AccountID: 10, PeriodID: 1, Date: bucketDay, Debit: dec("100.00"), Credit: decimal.Zero},
		{AccountID: 20, PeriodID: 1, Date: bucketDay, Debit: decimal.Zero, Credit: dec("100.00")},
	}
	assert.Empty(t, DiffSummaries(stored, fresh))

	// Drifted totals, a stored-only row, and a fresh-only row each report.
	drifted := []Summary{
		{AccountID: 10, PeriodID: 1, Date: bucketDay, DebitTotal: dec("90.00"), CreditTotal: decimal.Zero},
		{AccountID: 30, PeriodID: 1, Date: bucketDay, DebitTotal: dec("5.00"), CreditTotal: decimal.Zero},
	}
	mismatches := DiffSummaries(drifted, fresh)
	require.Len(t, mismatches, 3)
	assert.Contains(t, mismatches[0], "account 10")
	assert.Contains(t, mismatches[1], "account 30")
	assert.Contains(t, mismatches[2], "account 20")
}
