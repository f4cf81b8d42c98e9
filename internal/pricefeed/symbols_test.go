package pricefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolMap(t *testing.T) {
	m := NewSymbolMap("USDT")

	t.Run("KnownIdentifiers", func(t *testing.T) {
		assert.Equal(t, "BTC", m.Symbol("bitcoin"))
		assert.Equal(t, "BNB", m.Symbol("Binance-Coin"))
		assert.Equal(t, "ethereum", m.ID("ETH"))
		assert.Equal(t, "ETH", m.Symbol(m.ID("eth")))
	})

	t.Run("UnknownPassThrough", func(t *testing.T) {
		assert.Equal(t, "DOGE", m.Symbol("doge"))
		assert.Equal(t, "doge", m.ID("DOGE"))
	})

	t.Run("PairSuffixIsStripped", func(t *testing.T) {
		assert.Equal(t, "BTC", m.Symbol("BTCUSDT"))
		assert.Equal(t, "USDT", m.Symbol("USDT"))
	})

	t.Run("Pair", func(t *testing.T) {
		assert.Equal(t, "BTCUSDT", m.Pair("bitcoin"))
		assert.Equal(t, "SOLUSDT", m.Pair("sol"))
	})

	t.Run("SupportedInRegistrationOrder", func(t *testing.T) {
		assert.Equal(t, []string{"BTC", "ETH", "SOL", "BNB", "XRP", "ADA"}, m.Supported())
	})

	t.Run("Register", func(t *testing.T) {
		local := NewSymbolMap("USDT")
		local.Register("dogecoin", "doge")
		assert.Equal(t, "DOGE", local.Symbol("dogecoin"))
		assert.Equal(t, "dogecoin", local.ID("DOGE"))
		assert.Contains(t, local.Supported(), "DOGE")
	})
}
