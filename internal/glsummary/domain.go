package glsummary

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/granite-erp/granite-ledger/internal/coa"
)

// Summary is one aggregated bucket: per account, per period, per civil
// date. Rows are owned by the posting engine and the period manager; no
// other writer touches them. Recomputing a period from posted lines must
// reproduce these rows exactly.
type Summary struct {
	ID          int64
	AccountID   int64
	PeriodID    int64
	Date        time.Time
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
	UpdatedAt   time.Time
}

// Delta is one additive adjustment applied under the posting transaction.
type Delta struct {
	AccountID int64
	PeriodID  int64
	Date      time.Time
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// AccountPeriodBalance aggregates a whole period for one account,
// including the opening balance seeded by the previous close.
type AccountPeriodBalance struct {
	AccountID   int64
	AccountCode string
	AccountName string
	AccountType coa.AccountType
	PeriodID    int64
	Opening     decimal.Decimal
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Closing computes the closing balance using the account type's sign
// convention: debit-normal accounts grow with debits, credit-normal
// accounts grow with credits.
func (b AccountPeriodBalance) Closing() decimal.Decimal {
	if b.AccountType.NormalBalance() == "DEBIT" {
		return b.Opening.Add(b.Debit).Sub(b.Credit)
	}
	return b.Opening.Add(b.Credit).Sub(b.Debit)
}
