// internal/domain/portfolio.go
package domain

import "time"

// DefaultInitialBalance is the virtual endowment of a portfolio with no persisted state.
const DefaultInitialBalance = 10000.0

// Snapshot is the persisted aggregate of a portfolio.
type Snapshot struct {
	Balance   float64   `db:"amount" json:"balance"`
	Holdings  []Holding `db:"-" json:"holdings"` // Ordered, unique by AssetID
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewSnapshot creates an empty portfolio holding only cash.
func NewSnapshot(balance float64) *Snapshot {
	return &Snapshot{
		Balance:   balance,
		Holdings:  []Holding{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy that can be mutated independently.
func (s *Snapshot) Clone() *Snapshot {
	holdings := make([]Holding, len(s.Holdings))
	copy(holdings, s.Holdings)
	return &Snapshot{
		Balance:   s.Balance,
		Holdings:  holdings,
		UpdatedAt: s.UpdatedAt,
	}
}

// Find returns the index of the holding for assetID, or -1.
func (s *Snapshot) Find(assetID string) int {
	for i := range s.Holdings {
		if s.Holdings[i].AssetID == assetID {
			return i
		}
	}
	return -1
}

// Remove drops the holding at index i, preserving order.
func (s *Snapshot) Remove(i int) {
	s.Holdings = append(s.Holdings[:i], s.Holdings[i+1:]...)
}
