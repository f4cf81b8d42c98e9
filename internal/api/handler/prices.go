// internal/api/handler/prices.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/tracker"
)

// QuoteSource fetches quotes for the price endpoints.
type QuoteSource interface {
	FetchPrice(ctx context.Context, assetID string) (domain.PriceQuote, error)
	Symbol(assetID string) string
}

// PriceTracker streams periodic price updates.
type PriceTracker interface {
	Track(symbol string, d dispatch.Dispatcher, observer tracker.Observer) *tracker.Subscription
	Untrack(sub *tracker.Subscription)
}

// PriceUpdate is one event on a price stream.
type PriceUpdate struct {
	AssetID   string    `json:"asset_id"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceHandler handles HTTP requests for market prices.
type PriceHandler struct {
	responder
	feed    QuoteSource
	tracker PriceTracker
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(feed QuoteSource, tr PriceTracker, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		responder: newResponder(logger),
		feed:      feed,
		tracker:   tr,
	}
}

// GetQuote handles the current quote request.
// GET /prices/{assetID}
func (h *PriceHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.feed.FetchPrice(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, quote)
}

// Stream pushes tracker updates as server-sent events until the client goes away.
// GET /prices/{assetID}/stream
func (h *PriceHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondWithError(w, fmt.Errorf("streaming unsupported"))
		return
	}
	symbol := h.feed.Symbol(chi.URLParam(r, "assetID"))

	// Slow readers lose intermediate updates rather than stall the tracker.
	updates := make(chan PriceUpdate, 16)
	sub := h.tracker.Track(symbol, nil, func(symbol string, price, change float64) {
		select {
		case updates <- PriceUpdate{AssetID: symbol, Price: price, Change24h: change, Timestamp: time.Now().UTC()}:
		default:
		}
	})
	defer h.tracker.Untrack(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("Price stream opened", "symbol", symbol)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("Price stream closed", "symbol", symbol)
			return
		case update := <-updates:
			data, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("Failed to marshal price update", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: price\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
