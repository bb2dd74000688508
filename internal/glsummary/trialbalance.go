package glsummary

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	Code    string
	Name    string
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Closing decimal.Decimal
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string
	Accounts []TrialBalanceAccount
	Opening  decimal.Decimal
	Debit    decimal.Decimal
	Credit   decimal.Decimal
	Closing  decimal.Decimal
}

// TrialBalance is the final structure rendered by reporting consumers.
type TrialBalance struct {
	Groups       []TrialBalanceGroup
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	TotalOpening decimal.Decimal
	TotalClosing decimal.Decimal
}

// groupKey buckets account codes by their leading segment, e.g. "4-10101"
// groups under "4".
func groupKey(code string) string {
	if idx := strings.IndexAny(code, ".-"); idx > 0 {
		return code[:idx]
	}
	if len(code) >= 2 {
		return code[:2]
	}
	return code
}

// BuildTrialBalance converts account balances into grouped trial balance data.
func BuildTrialBalance(balances []AccountPeriodBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, bal := range balances {
		key := groupKey(bal.AccountCode)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			Code:    bal.AccountCode,
			Name:    bal.AccountName,
			Opening: bal.Opening,
			Debit:   bal.Debit,
			Credit:  bal.Credit,
			Closing: bal.Closing(),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Opening = grp.Opening.Add(row.Opening)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.Closing = grp.Closing.Add(row.Closing)
	}

	sort.Strings(keys)
	result := TrialBalance{}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalOpening = result.TotalOpening.Add(grp.Opening)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
		result.TotalClosing = result.TotalClosing.Add(grp.Closing)
	}
	return result
}
