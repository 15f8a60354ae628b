package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/store"
)

// staticPrices is a PriceSource backed by a fixed quote table.
type staticPrices map[string]decimal.Decimal

func (p staticPrices) Quote(instrument string) (decimal.Decimal, bool) {
	q, ok := p[instrument]
	return q, ok
}

func TestListPositions_DerivesPnl(t *testing.T) {
	ledger := store.NewMemoryLedger()
	orders := NewOrderService(ledger)
	ctx := context.Background()

	if _, err := orders.PlaceOrder(ctx, "u1", PlaceOrderRequest{
		Instrument: "ACME", Quantity: 4, Price: dec("100"), Mode: domain.OrderModeBuy,
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	portfolio := NewPortfolioService(ledger, staticPrices{"ACME": dec("110")})

	positions, err := portfolio.ListPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}

	p := positions[0]
	if !p.ObservedPrice.Equal(dec("110")) {
		t.Errorf("observed price = %s, want 110", p.ObservedPrice)
	}
	// (110 - 100) * 4 = 40, and 10% on cost.
	if !p.Pnl.Equal(dec("40")) {
		t.Errorf("pnl = %s, want 40", p.Pnl)
	}
	if !p.PnlPercent.Equal(dec("10")) {
		t.Errorf("pnl percent = %s, want 10", p.PnlPercent)
	}
}

func TestListPositions_FallsBackToLastPrice(t *testing.T) {
	ledger := store.NewMemoryLedger()
	orders := NewOrderService(ledger)
	ctx := context.Background()

	if _, err := orders.PlaceOrder(ctx, "u1", PlaceOrderRequest{
		Instrument: "ACME", Quantity: 2, Price: dec("50"), Mode: domain.OrderModeBuy,
	}); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// No quote for ACME: positions mark at the last traded price.
	portfolio := NewPortfolioService(ledger, staticPrices{})

	positions, err := portfolio.ListPositions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	p := positions[0]
	if !p.ObservedPrice.Equal(dec("50")) {
		t.Errorf("observed price = %s, want 50", p.ObservedPrice)
	}
	if !p.Pnl.IsZero() {
		t.Errorf("pnl = %s, want 0", p.Pnl)
	}
}

func TestListHoldingsAndOrders_ScopedToUser(t *testing.T) {
	ledger := store.NewMemoryLedger()
	orders := NewOrderService(ledger)
	portfolio := NewPortfolioService(ledger, nil)
	ctx := context.Background()

	for _, userID := range []string{"u1", "u2"} {
		if _, err := orders.PlaceOrder(ctx, userID, PlaceOrderRequest{
			Instrument: "ACME", Quantity: 1, Price: dec("10"), Mode: domain.OrderModeBuy,
		}); err != nil {
			t.Fatalf("PlaceOrder: %v", err)
		}
	}

	holdings, err := portfolio.ListHoldings(ctx, "u1")
	if err != nil {
		t.Fatalf("ListHoldings: %v", err)
	}
	if len(holdings) != 1 || holdings[0].UserID != "u1" {
		t.Errorf("holdings = %+v", holdings)
	}

	got, err := portfolio.ListOrders(ctx, "u1")
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(got) != 1 || got[0].UserID != "u1" {
		t.Errorf("orders = %+v", got)
	}
}
