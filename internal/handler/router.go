package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mvasconc/papertrade/internal/auth"
	"github.com/mvasconc/papertrade/internal/metrics"
	"github.com/mvasconc/papertrade/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// metrics, and Content-Type validation middleware.
func NewRouter(
	authSvc *service.AuthService,
	orderSvc *service.OrderService,
	portfolioSvc *service.PortfolioService,
	tokens *auth.TokenIssuer,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(metrics.Middleware)
	r.Use(contentTypeJSON)

	// Create handlers.
	authH := NewAuthHandler(authSvc, tokens)
	orderH := NewOrderHandler(orderSvc, portfolioSvc)
	portfolioH := NewPortfolioHandler(portfolioSvc)

	// Health check and metrics.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Account routes.
	r.Post("/api/signup", authH.Signup)
	r.Post("/api/login", authH.Login)
	r.Post("/api/logout", authH.Logout)

	// Ledger routes, all authenticated.
	r.Group(func(r chi.Router) {
		r.Use(requireAuth(tokens))
		r.Post("/api/orders", orderH.PlaceOrder)
		r.Get("/api/orders", orderH.ListOrders)
		r.Get("/api/holdings", portfolioH.ListHoldings)
		r.Get("/api/positions", portfolioH.ListPositions)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests carrying a body. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength != 0 {
				ct := r.Header.Get("Content-Type")
				if ct == "" || !strings.HasPrefix(ct, "application/json") {
					WriteError(w, http.StatusBadRequest, "invalid_request",
						"Content-Type must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
