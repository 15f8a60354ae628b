package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc     *service.OrderService
	portfolioSvc *service.PortfolioService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, portfolioSvc *service.PortfolioService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, portfolioSvc: portfolioSvc}
}

// placeOrderRequest is the JSON request body for POST /api/orders.
// Price accepts both a JSON number and a string.
type placeOrderRequest struct {
	Instrument string          `json:"instrument"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Mode       string          `json:"mode"`
}

// orderResponse is the JSON shape of one order.
type orderResponse struct {
	Success    bool   `json:"success"`
	OrderID    string `json:"order_id"`
	Instrument string `json:"instrument"`
	Quantity   int64  `json:"quantity"`
	Price      string `json:"price"`
	Mode       string `json:"mode"`
	CreatedAt  string `json:"created_at"`
}

func buildOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		Success:    true,
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Quantity:   o.Quantity,
		Price:      o.Price.String(),
		Mode:       string(o.Mode),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}

// PlaceOrder handles POST /api/orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.PlaceOrder(r.Context(), userIDFrom(r.Context()), service.PlaceOrderRequest{
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Mode:       domain.OrderMode(req.Mode),
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// ListOrders handles GET /api/orders. Orders come back newest first.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.portfolioSvc.ListOrders(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, buildOrderResponse(&orders[i]))
	}
	WriteJSON(w, http.StatusOK, out)
}

func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientHolding):
		WriteError(w, http.StatusConflict, "insufficient_holding", err.Error())
	case errors.Is(err, domain.ErrInsufficientPosition):
		WriteError(w, http.StatusConflict, "insufficient_position", err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		WriteError(w, http.StatusConflict, "conflict", "The order conflicted with a concurrent one, retry")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
