// Package engine implements the order-settlement logic: the pure decision
// function that turns one BUY/SELL intent into the ledger mutations for the
// user's holding and position in that instrument, or a rejection.
//
// The engine never touches storage. Callers read the current records, call
// Settle, and apply the returned changeset atomically.
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
)

// Intent is a proposed order before settlement.
type Intent struct {
	UserID     string
	Instrument string
	Quantity   int64
	Price      decimal.Decimal
	Mode       domain.OrderMode
}

// book is the accumulation state shared by the holding and position legs.
// Both legs run through the same buy/sell arithmetic so the two records
// cannot drift apart across call sites.
type book struct {
	qty  int64
	avg  decimal.Decimal
	last decimal.Decimal
}

// buy accumulates quantity and recomputes the weighted-average cost:
// newAvg = (avg×qty + price×n) / (qty+n). An empty book opens at the
// order price.
func (b book) buy(n int64, price decimal.Decimal) book {
	if b.qty == 0 {
		return book{qty: n, avg: price, last: price}
	}
	total := b.qty + n
	newAvg := b.avg.Mul(decimal.NewFromInt(b.qty)).
		Add(price.Mul(decimal.NewFromInt(n))).
		Div(decimal.NewFromInt(total))
	return book{qty: total, avg: newAvg, last: price}
}

// sell decrements quantity, leaving the average cost untouched; only
// buys move it. The last price tracks the sell price for display. Returns
// false when the book holds fewer than n units.
func (b book) sell(n int64, price decimal.Decimal) (book, bool) {
	if b.qty < n {
		return book{}, false
	}
	return book{qty: b.qty - n, avg: b.avg, last: price}, true
}

// Settle computes the ledger mutations for one order intent given the
// current holding and position records (nil when absent). It returns a
// changeset that the caller must apply as a single atomic unit, or an
// error with no mutations at all.
//
// BUY accumulates both legs, creating records that don't exist yet. SELL
// requires the holding to cover the full quantity (ErrInsufficientHolding
// otherwise) and checks the position independently: a position that exists
// but is short rejects with ErrInsufficientPosition, while an absent
// position is simply not touched. A record is never driven negative and
// never created by a sell. Records that reach zero quantity are deleted,
// not kept as zero rows.
func Settle(holding *domain.Holding, position *domain.Position, in Intent) (domain.Changeset, error) {
	if err := validate(in); err != nil {
		return domain.Changeset{}, err
	}

	switch in.Mode {
	case domain.OrderModeBuy:
		return settleBuy(holding, position, in), nil
	default:
		return settleSell(holding, position, in)
	}
}

func validate(in Intent) error {
	if in.Quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if !domain.ValidPrice(in.Price) {
		return &domain.ValidationError{Message: "price must be positive with at most 2 decimal places"}
	}
	if in.Mode != domain.OrderModeBuy && in.Mode != domain.OrderModeSell {
		return &domain.ValidationError{Message: "mode must be BUY or SELL"}
	}
	return nil
}

func settleBuy(holding *domain.Holding, position *domain.Position, in Intent) domain.Changeset {
	h := holdingBook(holding).buy(in.Quantity, in.Price)
	p := positionBook(position).buy(in.Quantity, in.Price)

	product := domain.ProductMIS
	if position != nil {
		product = position.Product
	}

	return domain.Changeset{
		UpsertHolding: &domain.Holding{
			UserID:     in.UserID,
			Instrument: in.Instrument,
			Quantity:   h.qty,
			AvgCost:    h.avg,
			LastPrice:  h.last,
		},
		UpsertPosition: &domain.Position{
			UserID:     in.UserID,
			Instrument: in.Instrument,
			Quantity:   p.qty,
			AvgCost:    p.avg,
			LastPrice:  p.last,
			Product:    product,
		},
	}
}

func settleSell(holding *domain.Holding, position *domain.Position, in Intent) (domain.Changeset, error) {
	if holding == nil {
		return domain.Changeset{}, domain.ErrInsufficientHolding
	}
	h, ok := holdingBook(holding).sell(in.Quantity, in.Price)
	if !ok {
		return domain.Changeset{}, domain.ErrInsufficientHolding
	}

	var cs domain.Changeset

	// Position leg is validated on its own: an existing short position
	// rejects the whole order, an absent one is left alone.
	if position != nil {
		p, ok := positionBook(position).sell(in.Quantity, in.Price)
		if !ok {
			return domain.Changeset{}, domain.ErrInsufficientPosition
		}
		if p.qty == 0 {
			cs.DeletePosition = true
		} else {
			cs.UpsertPosition = &domain.Position{
				UserID:     in.UserID,
				Instrument: in.Instrument,
				Quantity:   p.qty,
				AvgCost:    p.avg,
				LastPrice:  p.last,
				Product:    position.Product,
			}
		}
	}

	if h.qty == 0 {
		cs.DeleteHolding = true
	} else {
		cs.UpsertHolding = &domain.Holding{
			UserID:     in.UserID,
			Instrument: in.Instrument,
			Quantity:   h.qty,
			AvgCost:    h.avg,
			LastPrice:  h.last,
		}
	}

	return cs, nil
}

func holdingBook(h *domain.Holding) book {
	if h == nil {
		return book{}
	}
	return book{qty: h.Quantity, avg: h.AvgCost, last: h.LastPrice}
}

func positionBook(p *domain.Position) book {
	if p == nil {
		return book{}
	}
	return book{qty: p.Quantity, avg: p.AvgCost, last: p.LastPrice}
}
