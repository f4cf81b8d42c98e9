// internal/domain/quote.go
package domain

import "time"

// PriceQuote is a point-in-time ticker reading for one asset.
// A zero Price means the quote is unavailable.
type PriceQuote struct {
	AssetID   string    `json:"asset_id"`   // Canonical symbol
	Pair      string    `json:"pair"`       // Exchange trading pair, e.g. "BTCUSDT"
	Price     float64   `json:"price"`      // Last traded price
	Change24h float64   `json:"change_24h"` // Percent, e.g. 2.5 for +2.5%
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Volume24h float64   `json:"volume_24h"`
	FetchedAt time.Time `json:"fetched_at"`
}

// QuoteResult pairs a quote with the error that made it unavailable, if any.
type QuoteResult struct {
	Quote PriceQuote
	Err   error
}
