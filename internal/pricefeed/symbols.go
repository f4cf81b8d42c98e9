package pricefeed

import (
	"strings"
	"sync"
)

// defaultAssets maps asset identifiers to exchange symbols, in listing order.
var defaultAssets = []struct{ id, symbol string }{
	{"bitcoin", "BTC"},
	{"ethereum", "ETH"},
	{"solana", "SOL"},
	{"binance-coin", "BNB"},
	{"ripple", "XRP"},
	{"cardano", "ADA"},
}

// SymbolMap translates between asset identifiers ("bitcoin") and canonical
// exchange symbols ("BTC"). Unknown values pass through unchanged apart from case.
type SymbolMap struct {
	mu       sync.RWMutex
	toSymbol map[string]string
	toID     map[string]string
	order    []string
	quote    string
}

// NewSymbolMap creates a map preloaded with the supported assets, pairing
// symbols against the quote currency (e.g. "USDT").
func NewSymbolMap(quote string) *SymbolMap {
	m := &SymbolMap{
		toSymbol: make(map[string]string),
		toID:     make(map[string]string),
		quote:    strings.ToUpper(quote),
	}
	for _, a := range defaultAssets {
		m.Register(a.id, a.symbol)
	}
	return m
}

// Register adds or replaces a mapping.
func (m *SymbolMap) Register(id, symbol string) {
	id = strings.ToLower(strings.TrimSpace(id))
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, known := m.toID[symbol]; !known {
		m.order = append(m.order, symbol)
	}
	m.toSymbol[id] = symbol
	m.toID[symbol] = id
}

// Symbol returns the canonical symbol for an asset id, a symbol or a trading pair.
func (m *SymbolMap) Symbol(asset string) string {
	asset = strings.TrimSpace(asset)

	m.mu.RLock()
	symbol, ok := m.toSymbol[strings.ToLower(asset)]
	m.mu.RUnlock()
	if ok {
		return symbol
	}

	symbol = strings.ToUpper(asset)
	if m.quote != "" && len(symbol) > len(m.quote) && strings.HasSuffix(symbol, m.quote) {
		symbol = strings.TrimSuffix(symbol, m.quote)
	}
	return symbol
}

// ID returns the asset identifier for a symbol.
func (m *SymbolMap) ID(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.toID[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// Pair returns the exchange trading pair for an asset, e.g. "BTCUSDT".
func (m *SymbolMap) Pair(asset string) string {
	return m.Symbol(asset) + m.quote
}

// Supported lists the registered symbols in registration order.
func (m *SymbolMap) Supported() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
