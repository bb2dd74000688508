package coa

import (
	"errors"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart of accounts node. Once a posted ledger line
// references an account, only Name and IsActive may change.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Type           AccountType
	PostingAllowed bool
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filter narrows ListAccounts results.
type Filter struct {
	Type           AccountType
	PostingAllowed *bool
	ActiveOnly     bool
}

// NormalBalance reports whether the account type grows on the debit side.
func (t AccountType) NormalBalance() string {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return "DEBIT"
	default:
		return "CREDIT"
	}
}

var (
	// ErrNotFound indicates a missing account.
	ErrNotFound = errors.New("coa: account not found")
	// ErrNonPostableAccount indicates a header or summary account which
	// cannot carry ledger lines.
	ErrNonPostableAccount = errors.New("coa: account does not allow posting")
	// ErrDuplicateCode indicates a code uniqueness violation.
	ErrDuplicateCode = errors.New("coa: account code already exists")
)
