// internal/domain/holding_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHolding_Add(t *testing.T) {
	h := NewHolding("BTC", 1, 100)
	h.Add(1, 200)

	assert.Equal(t, 2.0, h.Quantity)
	assert.Equal(t, 150.0, h.AverageCost)
	assert.Equal(t, 300.0, h.InvestedValue())
}

func TestHolding_Reduce(t *testing.T) {
	t.Run("Partial", func(t *testing.T) {
		h := NewHolding("ETH", 2, 10)
		assert.False(t, h.Reduce(0.5))
		assert.Equal(t, 1.5, h.Quantity)
		assert.Equal(t, 10.0, h.AverageCost, "selling does not change the cost basis")
	})

	t.Run("Closed", func(t *testing.T) {
		h := NewHolding("ETH", 2, 10)
		assert.True(t, h.Reduce(2))
	})

	t.Run("DustIsClosed", func(t *testing.T) {
		h := NewHolding("ETH", 1, 10)
		assert.True(t, h.Reduce(1-DustThreshold/2))
	})

	t.Run("ExactlyAtThresholdIsClosed", func(t *testing.T) {
		h := NewHolding("ETH", 2*DustThreshold, 10)
		assert.True(t, h.Reduce(DustThreshold))
	})
}

func TestHolding_Valuation(t *testing.T) {
	h := Holding{AssetID: "SOL", Quantity: 4, AverageCost: 25}

	assert.Equal(t, 120.0, h.CurrentValue(30))
	assert.Equal(t, 20.0, h.ProfitLoss(30))
	assert.Equal(t, 20.0, h.ProfitLossPercentage(30))
	assert.Equal(t, -100.0, h.ProfitLoss(0))
	assert.Equal(t, -100.0, h.ProfitLossPercentage(0))

	free := Holding{AssetID: "SOL", Quantity: 4}
	assert.Equal(t, 0.0, free.ProfitLossPercentage(30), "zero cost basis")
}

func TestSnapshot(t *testing.T) {
	s := NewSnapshot(DefaultInitialBalance)
	s.Holdings = append(s.Holdings, *NewHolding("BTC", 1, 100), *NewHolding("ETH", 1, 10), *NewHolding("SOL", 1, 1))

	clone := s.Clone()
	clone.Holdings[0].Quantity = 5
	clone.Balance = 0
	assert.Equal(t, 1.0, s.Holdings[0].Quantity)
	assert.Equal(t, DefaultInitialBalance, s.Balance)

	assert.Equal(t, 1, s.Find("ETH"))
	assert.Equal(t, -1, s.Find("XRP"))

	s.Remove(1)
	assert.Equal(t, []string{"BTC", "SOL"}, []string{s.Holdings[0].AssetID, s.Holdings[1].AssetID})
}
