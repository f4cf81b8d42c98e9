// internal/domain/transaction.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionKind defines the side of a trade.
type TransactionKind string

const (
	TransactionKindBuy  TransactionKind = "BUY"
	TransactionKindSell TransactionKind = "SELL"
)

// TransactionRecord is an immutable entry of the trade log.
type TransactionRecord struct {
	ID         string          `db:"id" json:"id"`                   // UUID
	Kind       TransactionKind `db:"kind" json:"kind"`               // BUY or SELL
	AssetID    string          `db:"asset_id" json:"asset_id"`       // Canonical exchange symbol
	Quantity   float64         `db:"quantity" json:"quantity"`       // Units traded
	UnitPrice  float64         `db:"unit_price" json:"unit_price"`   // Price per unit at execution
	TotalValue float64         `db:"total_value" json:"total_value"` // Quantity * UnitPrice
	Timestamp  time.Time       `db:"created_at" json:"timestamp"`    // Execution time
}

// NewTransactionRecord creates a record for a trade executed now.
func NewTransactionRecord(kind TransactionKind, assetID string, quantity, unitPrice float64) *TransactionRecord {
	return &TransactionRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		AssetID:    assetID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalValue: quantity * unitPrice,
		Timestamp:  time.Now().UTC(),
	}
}

// String renders the history line, e.g. "BUY 0.50000000 BTC @ $100.00 = $50.00".
func (r TransactionRecord) String() string {
	return fmt.Sprintf("%s %.8f %s @ %s = %s",
		r.Kind, r.Quantity, r.AssetID, FormatUSD(r.UnitPrice), FormatUSD(r.TotalValue))
}
