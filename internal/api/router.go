// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"papertrade/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router. A nil metricsHandler
// leaves the metrics endpoint unmounted.
func NewRouter(portfolioHandler *handler.PortfolioHandler, priceHandler *handler.PriceHandler, metricsPath string, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID) // Add a request ID to the context
	r.Use(middleware.RealIP)    // Use the real IP address
	r.Use(middleware.Logger)    // Log HTTP requests
	r.Use(middleware.Recoverer) // Recover from panics and return 500

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if metricsHandler != nil {
		r.Handle(metricsPath, metricsHandler)
	}

	// Streams stay open indefinitely and skip the request timeout.
	r.Get("/prices/{assetID}/stream", priceHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(handler.DefaultTimeout))

		r.Get("/prices/{assetID}", priceHandler.GetQuote)

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", portfolioHandler.GetSummary)
			r.Delete("/", portfolioHandler.Reset)
			r.Post("/deposit", portfolioHandler.Deposit)
			r.Put("/balance", portfolioHandler.SetBalance)
			r.Post("/buy", portfolioHandler.Buy)
			r.Post("/sell", portfolioHandler.Sell)
			r.Get("/holdings", portfolioHandler.ListHoldings)
			r.Get("/holdings/{assetID}", portfolioHandler.GetHolding)
			r.Get("/transactions", portfolioHandler.GetTransactionHistory)
		})
	})

	logger.Debug("Routes registered")
	return r
}
