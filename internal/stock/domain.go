// Package stock tracks per-warehouse, per-product stock balance snapshots
// by accounting period. Snapshots roll forward at period close exactly
// like GL opening balances and are guarded against duplicate rollover.
package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the period snapshot of one product in one warehouse.
type Balance struct {
	ID          int64
	PeriodID    int64
	WarehouseID int64
	ProductID   int64
	Qty         decimal.Decimal
	Value       decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
