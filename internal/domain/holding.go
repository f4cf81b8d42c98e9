// internal/domain/holding.go
package domain

import (
	"time"
)

// DustThreshold is the quantity at or below which a holding is considered closed.
const DustThreshold = 1e-8

// Holding is an open position in a single asset.
type Holding struct {
	AssetID     string    `db:"asset_id" json:"asset_id"`         // Canonical exchange symbol, e.g. "BTC"
	Quantity    float64   `db:"quantity" json:"quantity"`         // Always above DustThreshold while held
	AverageCost float64   `db:"average_cost" json:"average_cost"` // Quantity-weighted average purchase price
	LastUpdated time.Time `db:"last_updated" json:"last_updated"` // Timestamp of last mutation
}

// NewHolding opens a position bought at unitPrice.
func NewHolding(assetID string, quantity, unitPrice float64) *Holding {
	return &Holding{
		AssetID:     assetID,
		Quantity:    quantity,
		AverageCost: unitPrice,
		LastUpdated: time.Now().UTC(),
	}
}

// Add increases the position and recomputes the weighted average cost.
func (h *Holding) Add(quantity, unitPrice float64) {
	total := h.Quantity + quantity
	h.AverageCost = (h.Quantity*h.AverageCost + quantity*unitPrice) / total
	h.Quantity = total
	h.LastUpdated = time.Now().UTC()
}

// Reduce decreases the position and reports whether it is now closed.
func (h *Holding) Reduce(quantity float64) (closed bool) {
	h.Quantity -= quantity
	h.LastUpdated = time.Now().UTC()
	return h.Quantity <= DustThreshold
}

// InvestedValue is the cost basis of the position.
func (h Holding) InvestedValue() float64 {
	return h.Quantity * h.AverageCost
}

// CurrentValue values the position at price.
func (h Holding) CurrentValue(price float64) float64 {
	return h.Quantity * price
}

// ProfitLoss is the unrealized gain at price.
func (h Holding) ProfitLoss(price float64) float64 {
	return h.Quantity * (price - h.AverageCost)
}

// ProfitLossPercentage is ProfitLoss relative to the cost basis, 0 when the basis is 0.
func (h Holding) ProfitLossPercentage(price float64) float64 {
	invested := h.InvestedValue()
	if invested == 0 {
		return 0
	}
	return h.ProfitLoss(price) / invested * 100
}
