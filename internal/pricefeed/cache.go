package pricefeed

import (
	"sync"
	"time"

	"papertrade/internal/domain"
)

type cachedResponse struct {
	body      []byte
	fetchedAt time.Time
}

// responseCache holds raw exchange responses keyed by request URL for a short TTL.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedResponse
	now     func() time.Time
}

func newResponseCache(ttl time.Duration, now func() time.Time) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cachedResponse),
		now:     now,
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.body, true
}

func (c *responseCache) put(key string, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResponse{body: body, fetchedAt: c.now()}
}

// quoteCache keeps the last successfully parsed quote per symbol. Entries never expire.
type quoteCache struct {
	mu     sync.RWMutex
	quotes map[string]domain.PriceQuote
}

func newQuoteCache() *quoteCache {
	return &quoteCache{quotes: make(map[string]domain.PriceQuote)}
}

func (c *quoteCache) get(symbol string) (domain.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

func (c *quoteCache) put(q domain.PriceQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.AssetID] = q
}
