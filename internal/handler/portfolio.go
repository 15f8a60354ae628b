package handler

import (
	"net/http"

	"github.com/mvasconc/papertrade/internal/domain"
	"github.com/mvasconc/papertrade/internal/service"
)

// PortfolioHandler handles HTTP requests for holdings and positions.
type PortfolioHandler struct {
	portfolioSvc *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioSvc *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc}
}

// holdingResponse is the JSON shape of one holding.
type holdingResponse struct {
	Instrument string `json:"instrument"`
	Quantity   int64  `json:"quantity"`
	AvgCost    string `json:"avg_cost"`
	LastPrice  string `json:"last_price"`
}

// positionResponse is the JSON shape of one position, with profit/loss
// derived against the observed price at read time.
type positionResponse struct {
	Product       string `json:"product"`
	Instrument    string `json:"instrument"`
	Quantity      int64  `json:"quantity"`
	AvgCost       string `json:"avg_cost"`
	LastPrice     string `json:"last_price"`
	ObservedPrice string `json:"observed_price"`
	Pnl           string `json:"pnl"`
	PnlPercent    string `json:"pnl_percent"`
}

// ListHoldings handles GET /api/holdings.
func (h *PortfolioHandler) ListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.portfolioSvc.ListHoldings(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	out := make([]holdingResponse, 0, len(holdings))
	for _, hd := range holdings {
		out = append(out, holdingResponse{
			Instrument: hd.Instrument,
			Quantity:   hd.Quantity,
			AvgCost:    hd.AvgCost.String(),
			LastPrice:  hd.LastPrice.String(),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// ListPositions handles GET /api/positions.
func (h *PortfolioHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.portfolioSvc.ListPositions(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, buildPositionResponse(p))
	}
	WriteJSON(w, http.StatusOK, out)
}

func buildPositionResponse(p domain.PositionWithPnl) positionResponse {
	return positionResponse{
		Product:       p.Product,
		Instrument:    p.Instrument,
		Quantity:      p.Quantity,
		AvgCost:       p.AvgCost.String(),
		LastPrice:     p.LastPrice.String(),
		ObservedPrice: p.ObservedPrice.String(),
		Pnl:           p.Pnl.String(),
		PnlPercent:    p.PnlPercent.String(),
	}
}
