package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/engine"
	"github.com/mvasconc/papertrade/internal/metrics"
	"github.com/mvasconc/papertrade/internal/store"
)

var instrumentRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9&.-]{0,19}$`)

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	Instrument string
	Quantity   int64
	Price      decimal.Decimal
	Mode       domain.OrderMode
}

// OrderService validates and settles orders against the ledger.
type OrderService struct {
	ledger store.Ledger
}

// NewOrderService creates a new OrderService backed by the given ledger.
func NewOrderService(ledger store.Ledger) *OrderService {
	return &OrderService{ledger: ledger}
}

// PlaceOrder validates the request, settles it against the user's
// holdings and positions, and records the order together with the
// resulting balance changes. On rejection nothing is recorded.
//
// The settlement decision runs inside the ledger's Settle hook, which
// reads and writes under one serialization scope per (user, instrument),
// so concurrent sells cannot both pass the sufficiency check on stale
// balances.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*domain.Order, error) {
	if !instrumentRegex.MatchString(req.Instrument) {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, &domain.ValidationError{
			Message: "instrument must match ^[A-Z0-9][A-Z0-9&.-]{0,19}$",
		}
	}
	if req.Quantity <= 0 {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if !domain.ValidPrice(req.Price) {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, &domain.ValidationError{
			Message: "price must be positive with at most two decimal places",
		}
	}
	if req.Mode != domain.OrderModeBuy && req.Mode != domain.OrderModeSell {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("unknown order mode: %s, must be 'BUY' or 'SELL'", req.Mode),
		}
	}

	start := time.Now()

	order := &domain.Order{
		ID:         uuid.NewString(),
		UserID:     userID,
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Mode:       req.Mode,
		CreatedAt:  time.Now().UTC(),
	}

	err := s.ledger.Settle(ctx, order, func(holding *domain.Holding, position *domain.Position) (domain.Changeset, error) {
		return engine.Settle(holding, position, engine.Intent{
			UserID:     userID,
			Instrument: req.Instrument,
			Quantity:   req.Quantity,
			Price:      req.Price,
			Mode:       req.Mode,
		})
	})
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues(string(order.Mode)).Inc()
	metrics.SettlementLatency.WithLabelValues(string(order.Mode)).Observe(time.Since(start).Seconds())
	return order, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientHolding):
		return "insufficient_holding"
	case errors.Is(err, domain.ErrInsufficientPosition):
		return "insufficient_position"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "storage"
	}
}
