package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventKind enumerates the business events the builder understands.
type EventKind string

const (
	EventSalesInvoice    EventKind = "SALES_INVOICE"
	EventCustomerPayment EventKind = "CUSTOMER_PAYMENT"
	EventSupplierInvoice EventKind = "SUPPLIER_INVOICE"
	EventSupplierPayment EventKind = "SUPPLIER_PAYMENT"
	EventGoodsReceipt    EventKind = "GOODS_RECEIPT"
	EventStockIssue      EventKind = "STOCK_ISSUE"
	EventManualJournal   EventKind = "MANUAL_JOURNAL"
)

// System account keys resolved through the mapping configuration.
const (
	KeyARControl    = "AR_CONTROL"
	KeyAPControl    = "AP_CONTROL"
	KeyCashDefault  = "CASH_DEFAULT"
	KeySalesRevenue = "SALES_REVENUE"
	KeyTaxOutput    = "TAX_OUTPUT"
	KeyTaxInput     = "TAX_INPUT"
	KeyInventory    = "INVENTORY"
	KeyGRNI         = "GRNI"
	KeyCOGS         = "COGS"
)

// BusinessEvent describes one source document to be turned into a draft.
// Amount is the net amount; TaxAmount is added on top where the event kind
// carries tax. ManualLines is only read for EventManualJournal.
type BusinessEvent struct {
	Kind            EventKind
	ReferenceNumber string
	ReferenceType   string
	SourceID        uuid.UUID
	Date            time.Time
	Currency        string
	ExchangeRate    decimal.Decimal
	Description     string
	ActorID         int64
	Amount          decimal.Decimal
	TaxAmount       decimal.Decimal
	ManualLines     []DraftLine
}

// MappingSource resolves semantic system-account keys to CoA ids. The
// mapping table is maintained by the surrounding admin surface; an
// unconfigured key is a caller-visible configuration error, not a bug.
type MappingSource interface {
	ResolveAccount(ctx context.Context, key string) (int64, error)
}

// Builder turns business events into balanced drafts. The builder never
// emits an unbalanced draft: every rule debits and credits the same total
// by construction, and the final Validate call guards against rule bugs.
type Builder struct {
	mappings MappingSource
}

// NewBuilder constructs the builder.
func NewBuilder(mappings MappingSource) *Builder {
	return &Builder{mappings: mappings}
}

// BuildEntry maps a business event to a draft journal entry.
func (b *Builder) BuildEntry(ctx context.Context, event BusinessEvent) (Draft, error) {
	if event.Amount.IsNegative() || event.TaxAmount.IsNegative() {
		return Draft{}, errors.New("ledger: event amounts must be non-negative")
	}
	draft := Draft{
		ReferenceNumber: event.ReferenceNumber,
		ReferenceType:   event.ReferenceType,
		SourceID:        event.SourceID,
		TransactionDate: event.Date,
		Currency:        event.Currency,
		ExchangeRate:    event.ExchangeRate,
		Description:     event.Description,
		CreatedBy:       event.ActorID,
	}
	if draft.Currency == "" {
		draft.Currency = "IDR"
	}
	if draft.ExchangeRate.IsZero() {
		draft.ExchangeRate = decimal.New(1, 0)
	}

	var err error
	switch event.Kind {
	case EventSalesInvoice:
		gross := event.Amount.Add(event.TaxAmount)
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyARControl, gross),
			credit(KeySalesRevenue, event.Amount),
			credit(KeyTaxOutput, event.TaxAmount),
		)
	case EventCustomerPayment:
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyCashDefault, event.Amount),
			credit(KeyARControl, event.Amount),
		)
	case EventSupplierInvoice:
		gross := event.Amount.Add(event.TaxAmount)
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyGRNI, event.Amount),
			debit(KeyTaxInput, event.TaxAmount),
			credit(KeyAPControl, gross),
		)
	case EventSupplierPayment:
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyAPControl, event.Amount),
			credit(KeyCashDefault, event.Amount),
		)
	case EventGoodsReceipt:
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyInventory, event.Amount),
			credit(KeyGRNI, event.Amount),
		)
	case EventStockIssue:
		draft.Lines, err = b.lines(ctx, event,
			debit(KeyCOGS, event.Amount),
			credit(KeyInventory, event.Amount),
		)
	case EventManualJournal:
		draft.Lines = event.ManualLines
	default:
		return Draft{}, fmt.Errorf("ledger: unknown event kind %q", event.Kind)
	}
	if err != nil {
		return Draft{}, err
	}

	if err := draft.Validate(); err != nil {
		if event.Kind == EventManualJournal {
			return Draft{}, err
		}
		// Mapping rules pair every debit with an equal credit; reaching
		// this branch means a rule is wrong, not the input.
		return Draft{}, fmt.Errorf("ledger: builder produced invalid draft for %s: %w", event.Kind, err)
	}
	return draft, nil
}

type ruleLine struct {
	key    string
	debit  decimal.Decimal
	credit decimal.Decimal
}

func debit(key string, amount decimal.Decimal) ruleLine {
	return ruleLine{key: key, debit: amount}
}

func credit(key string, amount decimal.Decimal) ruleLine {
	return ruleLine{key: key, credit: amount}
}

// lines resolves mapping keys and drops zero-amount legs (e.g. tax-free
// invoices), keeping line numbers dense.
func (b *Builder) lines(ctx context.Context, event BusinessEvent, rules ...ruleLine) ([]DraftLine, error) {
	out := make([]DraftLine, 0, len(rules))
	for _, rule := range rules {
		if rule.debit.IsZero() && rule.credit.IsZero() {
			continue
		}
		accountID, err := b.mappings.ResolveAccount(ctx, rule.key)
		if err != nil {
			if errors.Is(err, ErrMappingNotFound) {
				return nil, fmt.Errorf("%w: key %s", ErrMappingNotFound, rule.key)
			}
			return nil, err
		}
		out = append(out, DraftLine{
			AccountID:   accountID,
			Debit:       rule.debit,
			Credit:      rule.credit,
			Description: event.Description,
			Reference:   event.ReferenceNumber,
		})
	}
	return out, nil
}
