package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/mvasconc/papertrade/internal/domain"
)

func drawPrice(t *rapid.T, label string) decimal.Decimal {
	cents := rapid.Int64Range(1, 10_000_00).Draw(t, label)
	return decimal.New(cents, -2)
}

// applySettle runs one intent against in-memory records and applies the
// changeset, mirroring what a ledger commit would do.
func applySettle(holding *domain.Holding, position *domain.Position, in Intent) (*domain.Holding, *domain.Position, error) {
	cs, err := Settle(holding, position, in)
	if err != nil {
		return holding, position, err
	}
	if cs.DeleteHolding {
		holding = nil
	} else if cs.UpsertHolding != nil {
		holding = cs.UpsertHolding
	}
	if cs.DeletePosition {
		position = nil
	} else if cs.UpsertPosition != nil {
		position = cs.UpsertPosition
	}
	return holding, position, nil
}

// TestProperty_NoOversell verifies that any sequence of buys and sells
// never drives a record negative: units sold so far never exceed units
// bought so far, and surviving records always carry positive quantity.
func TestProperty_NoOversell(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var holding *domain.Holding
		var position *domain.Position
		var bought, sold int64

		numOps := rapid.IntRange(1, 50).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			qty := rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("qty-%d", i))
			price := drawPrice(t, fmt.Sprintf("price-%d", i))
			mode := domain.OrderModeBuy
			if rapid.Bool().Draw(t, fmt.Sprintf("sell-%d", i)) {
				mode = domain.OrderModeSell
			}

			var err error
			holding, position, err = applySettle(holding, position, Intent{
				UserID: "u1", Instrument: "ACME", Quantity: qty, Price: price, Mode: mode,
			})
			if err != nil {
				if !errors.Is(err, domain.ErrInsufficientHolding) && !errors.Is(err, domain.ErrInsufficientPosition) {
					t.Fatalf("unexpected error: %v", err)
				}
				continue
			}
			if mode == domain.OrderModeBuy {
				bought += qty
			} else {
				sold += qty
			}

			if sold > bought {
				t.Fatalf("sold %d but only bought %d", sold, bought)
			}
			if holding != nil && holding.Quantity <= 0 {
				t.Fatalf("holding survived with quantity %d", holding.Quantity)
			}
			if position != nil && position.Quantity <= 0 {
				t.Fatalf("position survived with quantity %d", position.Quantity)
			}
			if holding != nil && holding.Quantity != bought-sold {
				t.Fatalf("holding quantity %d, want %d", holding.Quantity, bought-sold)
			}
			if holding == nil && bought != sold {
				t.Fatalf("holding absent with %d units outstanding", bought-sold)
			}
		}
	})
}

// TestProperty_WeightedAverageCost verifies that after any sequence of
// buys the average cost equals total money spent divided by total units,
// and that sells never move it.
func TestProperty_WeightedAverageCost(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var holding *domain.Holding
		var position *domain.Position
		spent := decimal.Zero
		var units int64

		numBuys := rapid.IntRange(1, 20).Draw(t, "numBuys")
		for i := 0; i < numBuys; i++ {
			qty := rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("qty-%d", i))
			price := drawPrice(t, fmt.Sprintf("price-%d", i))

			var err error
			holding, position, err = applySettle(holding, position, Intent{
				UserID: "u1", Instrument: "ACME", Quantity: qty, Price: price, Mode: domain.OrderModeBuy,
			})
			if err != nil {
				t.Fatalf("buy rejected: %v", err)
			}
			spent = spent.Add(price.Mul(decimal.NewFromInt(qty)))
			units += qty
		}

		wantAvg := spent.Div(decimal.NewFromInt(units))
		if !holding.AvgCost.Sub(wantAvg).Abs().LessThan(decimal.New(1, -8)) {
			t.Fatalf("avg cost %s, want %s", holding.AvgCost, wantAvg)
		}

		// A partial sell leaves the average untouched.
		sellQty := rapid.Int64Range(1, units).Draw(t, "sellQty")
		avgBefore := holding.AvgCost
		holding, _, err := applySettle(holding, position, Intent{
			UserID: "u1", Instrument: "ACME", Quantity: sellQty,
			Price: drawPrice(t, "sellPrice"), Mode: domain.OrderModeSell,
		})
		if err != nil {
			t.Fatalf("sell rejected: %v", err)
		}
		if holding != nil && !holding.AvgCost.Equal(avgBefore) {
			t.Fatalf("sell moved avg cost from %s to %s", avgBefore, holding.AvgCost)
		}
	})
}

// TestProperty_ZeroQuantityRemoval verifies that selling a record down to
// exactly zero removes it instead of leaving a zero row.
func TestProperty_ZeroQuantityRemoval(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		qty := rapid.Int64Range(1, 1000).Draw(t, "qty")
		buyPrice := drawPrice(t, "buyPrice")
		sellPrice := drawPrice(t, "sellPrice")

		holding, position, err := applySettle(nil, nil, Intent{
			UserID: "u1", Instrument: "ACME", Quantity: qty, Price: buyPrice, Mode: domain.OrderModeBuy,
		})
		if err != nil {
			t.Fatalf("buy rejected: %v", err)
		}

		holding, position, err = applySettle(holding, position, Intent{
			UserID: "u1", Instrument: "ACME", Quantity: qty, Price: sellPrice, Mode: domain.OrderModeSell,
		})
		if err != nil {
			t.Fatalf("sell rejected: %v", err)
		}
		if holding != nil {
			t.Fatalf("holding survived full sell: %+v", holding)
		}
		if position != nil {
			t.Fatalf("position survived full sell: %+v", position)
		}
	})
}
