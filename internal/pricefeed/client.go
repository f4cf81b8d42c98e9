// Package pricefeed fetches spot ticker prices from the exchange REST API.
//
// Every failure collapses to an unavailable quote: a PriceQuote with Price 0
// and an error wrapping util.ErrQuoteUnavailable. Successful quotes are kept
// in a last-known-good cache that never expires, so callers can fall back to
// the most recent price without I/O.
package pricefeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/metrics"
	"papertrade/internal/util"
)

// Config configures the exchange client.
type Config struct {
	BaseURL       string        `mapstructure:"base_url"`
	Category      string        `mapstructure:"category"`       // Exchange market category, "spot"
	QuoteCurrency string        `mapstructure:"quote_currency"` // Pair suffix, "USDT"
	Timeout       time.Duration `mapstructure:"timeout"`        // Per request, connect included
	ResponseTTL   time.Duration `mapstructure:"response_ttl"`   // Raw response cache lifetime
	Workers       int           `mapstructure:"workers"`        // Concurrent async and batch fetches
	RateLimit     float64       `mapstructure:"rate_limit"`     // Requests per second, 0 disables
	RateBurst     int           `mapstructure:"rate_burst"`
}

// DefaultConfig returns the public Bybit endpoint settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://api.bybit.com",
		Category:      "spot",
		QuoteCurrency: "USDT",
		Timeout:       5 * time.Second,
		ResponseTTL:   time.Second,
		Workers:       2,
		RateLimit:     10,
		RateBurst:     5,
	}
}

// Client is the price feed client. It is safe for concurrent use.
type Client struct {
	cfg       Config
	http      *resty.Client
	symbols   *SymbolMap
	responses *responseCache
	quotes    *quoteCache
	inflight  singleflight.Group
	limiter   *rate.Limiter
	workers   *semaphore.Weighted
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient creates a price feed client.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	c := &Client{
		cfg:     cfg,
		symbols: NewSymbolMap(cfg.QuoteCurrency),
		quotes:  newQuoteCache(),
		workers: semaphore.NewWeighted(int64(cfg.Workers)),
		metrics: m,
		logger:  logger.With("component", "pricefeed"),
		now:     time.Now,
	}
	c.responses = newResponseCache(cfg.ResponseTTL, func() time.Time { return c.now() })
	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return c
}

// Symbols exposes the symbol translation table.
func (c *Client) Symbols() *SymbolMap {
	return c.symbols
}

// Symbol returns the canonical symbol for an asset id or symbol.
func (c *Client) Symbol(assetID string) string {
	return c.symbols.Symbol(assetID)
}

// FetchPrice fetches the current quote, blocking on network I/O.
// On a foreground context it fails fast with util.ErrBlockingForbidden.
func (c *Client) FetchPrice(ctx context.Context, assetID string) (domain.PriceQuote, error) {
	symbol := c.symbols.Symbol(assetID)
	if dispatch.IsForeground(ctx) {
		return c.unavailable(symbol), fmt.Errorf("fetch %s: %w: %w", symbol, util.ErrQuoteUnavailable, util.ErrBlockingForbidden)
	}
	return c.fetchTicker(ctx, symbol)
}

// FetchPriceAsync fetches on a worker and posts cb to d with the result.
// A nil d runs cb on the worker.
func (c *Client) FetchPriceAsync(ctx context.Context, assetID string, d dispatch.Dispatcher, cb func(domain.PriceQuote, error)) {
	d = dispatch.OrInline(d)
	ctx = dispatch.WithBackground(ctx)
	symbol := c.symbols.Symbol(assetID)

	go func() {
		var (
			q   domain.PriceQuote
			err error
		)
		if err = c.workers.Acquire(ctx, 1); err != nil {
			q, err = c.unavailable(symbol), fmt.Errorf("fetch %s: %w: %w", symbol, util.ErrQuoteUnavailable, err)
		} else {
			q, err = c.fetchTicker(ctx, symbol)
			c.workers.Release(1)
		}
		if !d.Post(func() { cb(q, err) }) {
			c.logger.Debug("Quote callback dropped, dispatcher closed", "symbol", symbol)
		}
	}()
}

// FetchMarketData fetches quotes for several assets concurrently.
// The result has an entry for every requested id; a failed symbol carries a
// zero quote and its error without affecting the others.
func (c *Client) FetchMarketData(ctx context.Context, assetIDs []string) map[string]domain.QuoteResult {
	results := make(map[string]domain.QuoteResult, len(assetIDs))
	if dispatch.IsForeground(ctx) {
		for _, id := range assetIDs {
			symbol := c.symbols.Symbol(id)
			results[id] = domain.QuoteResult{
				Quote: c.unavailable(symbol),
				Err:   fmt.Errorf("fetch %s: %w: %w", symbol, util.ErrQuoteUnavailable, util.ErrBlockingForbidden),
			}
		}
		return results
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for _, id := range assetIDs {
		g.Go(func() error {
			q, err := c.fetchTicker(ctx, c.symbols.Symbol(id))
			mu.Lock()
			results[id] = domain.QuoteResult{Quote: q, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// LastQuote returns the last successfully fetched quote, without I/O.
func (c *Client) LastQuote(assetID string) (domain.PriceQuote, bool) {
	return c.quotes.get(c.symbols.Symbol(assetID))
}

// LastPrice returns the last known price, or 0 if the asset was never fetched.
func (c *Client) LastPrice(assetID string) float64 {
	q, _ := c.LastQuote(assetID)
	return q.Price
}

// LastChange returns the last known 24h change in percent, or 0.
func (c *Client) LastChange(assetID string) float64 {
	q, _ := c.LastQuote(assetID)
	return q.Change24h
}

func (c *Client) fetchTicker(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	pair := c.symbols.Pair(symbol)

	body, err := c.get(ctx, pair)
	if err == nil {
		var q domain.PriceQuote
		q, err = parseTicker(body)
		if err == nil {
			q.AssetID = symbol
			q.Pair = pair
			q.FetchedAt = c.now()
			c.quotes.put(q)
			c.metrics.PriceFetches.WithLabelValues(metrics.OutcomeSuccess).Inc()
			return q, nil
		}
	}

	c.metrics.PriceFetches.WithLabelValues(metrics.OutcomeFailure).Inc()
	c.logger.Warn("Quote unavailable", "symbol", symbol, "pair", pair, "error", err)
	return c.unavailable(symbol), fmt.Errorf("fetch %s: %w: %w", pair, util.ErrQuoteUnavailable, err)
}

// get returns the raw ticker response for pair, from the response cache when fresh.
// Concurrent requests for the same URL share one round trip.
func (c *Client) get(ctx context.Context, pair string) ([]byte, error) {
	params := url.Values{}
	params.Set("category", c.cfg.Category)
	params.Set("symbol", pair)
	key := c.cfg.BaseURL + tickerPath + "?" + params.Encode()

	if body, ok := c.responses.get(key); ok {
		c.metrics.ResponseCacheHits.Inc()
		return body, nil
	}

	v, err, _ := c.inflight.Do(key, func() (interface{}, error) {
		if body, ok := c.responses.get(key); ok {
			c.metrics.ResponseCacheHits.Inc()
			return body, nil
		}
		c.metrics.ResponseCacheMiss.Inc()

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		start := time.Now()
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			Get(tickerPath)
		c.metrics.PriceFetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}

		body := resp.Body()
		c.responses.put(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) unavailable(symbol string) domain.PriceQuote {
	return domain.PriceQuote{
		AssetID:   symbol,
		Pair:      c.symbols.Pair(symbol),
		FetchedAt: c.now(),
	}
}
