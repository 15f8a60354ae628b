package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/store"
)

// PriceSource supplies an observed market price for an instrument. A
// false return means no quote is available and the position's last
// traded price is used instead.
type PriceSource interface {
	Quote(instrument string) (decimal.Decimal, bool)
}

// PortfolioService serves read-only views of a user's ledger.
type PortfolioService struct {
	ledger store.Ledger
	prices PriceSource
}

// NewPortfolioService creates a new PortfolioService. prices may be nil,
// in which case positions are marked at their last traded price.
func NewPortfolioService(ledger store.Ledger, prices PriceSource) *PortfolioService {
	return &PortfolioService{ledger: ledger, prices: prices}
}

// ListHoldings returns the user's holdings sorted by instrument.
func (s *PortfolioService) ListHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	return s.ledger.ListHoldings(ctx, userID)
}

// ListPositions returns the user's positions sorted by instrument, each
// marked at the observed price with profit and loss derived on read.
func (s *PortfolioService) ListPositions(ctx context.Context, userID string) ([]domain.PositionWithPnl, error) {
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PositionWithPnl, 0, len(positions))
	for _, p := range positions {
		observed := p.LastPrice
		if s.prices != nil {
			if quote, ok := s.prices.Quote(p.Instrument); ok {
				observed = quote
			}
		}
		out = append(out, domain.PositionWithPnl{
			Position:      p,
			ObservedPrice: observed,
			Pnl:           p.Pnl(observed),
			PnlPercent:    p.PnlPercent(observed),
		})
	}
	return out, nil
}

// ListOrders returns the user's orders, newest first.
func (s *PortfolioService) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.ledger.ListOrders(ctx, userID)
}
