package domain

import "github.com/shopspring/decimal"

// ProductMIS is the default product tag for positions opened by a BUY.
const ProductMIS = "MIS"

// Holding is a user's net accumulated long exposure in one instrument,
// delivery-style. Unique per (userID, instrument). Quantity is never
// negative; a holding that reaches zero quantity is removed from the
// ledger rather than kept as a zero row.
type Holding struct {
	UserID     string
	Instrument string
	Quantity   int64
	AvgCost    decimal.Decimal
	LastPrice  decimal.Decimal
}

// Position is a user's currently open intraday exposure in one instrument.
// Structurally a Holding plus a product tag, but with an independent
// lifecycle: the settlement of one order updates both records in parallel,
// and each is validated on its own.
type Position struct {
	UserID     string
	Instrument string
	Quantity   int64
	AvgCost    decimal.Decimal
	LastPrice  decimal.Decimal
	Product    string
}

// PositionWithPnl is a Position enriched with derived profit/loss figures.
// The derived fields are computed at read time against an observed price
// and are never stored.
type PositionWithPnl struct {
	Position
	ObservedPrice decimal.Decimal
	Pnl           decimal.Decimal
	PnlPercent    decimal.Decimal
}

// Changeset is the set of ledger mutations one settlement produces.
// For each leg at most one of the upsert pointer and the delete flag is
// set; a leg with neither is left untouched.
type Changeset struct {
	UpsertHolding  *Holding
	DeleteHolding  bool
	UpsertPosition *Position
	DeletePosition bool
}

// Pnl computes unrealized profit/loss for a position at the observed
// price: (observed − avgCost) × quantity.
func (p *Position) Pnl(observed decimal.Decimal) decimal.Decimal {
	return observed.Sub(p.AvgCost).Mul(decimal.NewFromInt(p.Quantity))
}

// PnlPercent computes the relative unrealized profit/loss at the observed
// price. Defined as zero when the average cost is zero.
func (p *Position) PnlPercent(observed decimal.Decimal) decimal.Decimal {
	if p.AvgCost.IsZero() {
		return decimal.Zero
	}
	return observed.Sub(p.AvgCost).Div(p.AvgCost).Mul(decimal.NewFromInt(100))
}
