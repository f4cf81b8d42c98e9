// internal/service/valuation.go
package service

import (
	"context"
	"sync"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
)

// GetTotalValue is the balance plus holdings valued at last known prices.
// It never performs I/O; assets never priced count as 0.
func (s *portfolioService) GetTotalValue() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Balance + s.cachedValueLocked()
}

// GetInvestmentsValueCached values the holdings at last known prices, without I/O.
func (s *portfolioService) GetInvestmentsValueCached() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedValueLocked()
}

// GetInvestmentsValue values the holdings at freshly fetched prices, blocking
// on the network. On a foreground context it returns the cached valuation.
// Holdings whose price cannot be fetched count as 0.
func (s *portfolioService) GetInvestmentsValue(ctx context.Context) float64 {
	if dispatch.IsForeground(ctx) {
		return s.GetInvestmentsValueCached()
	}

	total := 0.0
	for _, h := range s.ListHoldings() {
		quote, err := s.feed.FetchPrice(ctx, h.AssetID)
		if err != nil {
			continue
		}
		total += h.CurrentValue(quote.Price)
	}
	return total
}

// GetInvestmentsValueAsync values the holdings and posts cb to d exactly once,
// after every holding's price has resolved.
func (s *portfolioService) GetInvestmentsValueAsync(ctx context.Context, d dispatch.Dispatcher, cb func(investments float64)) {
	s.valueHoldingsAsync(ctx, d, cb)
}

// GetTotalValueAsync is GetInvestmentsValueAsync plus the balance at completion time.
func (s *portfolioService) GetTotalValueAsync(ctx context.Context, d dispatch.Dispatcher, cb func(total float64)) {
	s.valueHoldingsAsync(ctx, d, func(investments float64) {
		cb(s.GetBalance() + investments)
	})
}

// GetProfitLoss sums unrealized gains at freshly fetched prices. On a
// foreground context it uses last known prices instead. A holding without a
// price is valued at 0 under ZeroPriceAllow and skipped under ZeroPriceReject.
func (s *portfolioService) GetProfitLoss(ctx context.Context) float64 {
	foreground := dispatch.IsForeground(ctx)

	total := 0.0
	for _, h := range s.ListHoldings() {
		var (
			quote domain.PriceQuote
			err   error
			ok    = true
		)
		if foreground {
			quote, ok = s.feed.LastQuote(h.AssetID)
		} else {
			quote, err = s.feed.FetchPrice(ctx, h.AssetID)
		}
		if (err != nil || !ok) && s.opts.ZeroPricePolicy == ZeroPriceReject {
			continue
		}
		total += h.ProfitLoss(quote.Price)
	}
	return total
}

// CachedPrice returns the last known price of assetID, or 0.
func (s *portfolioService) CachedPrice(assetID string) float64 {
	quote, _ := s.feed.LastQuote(assetID)
	return quote.Price
}

func (s *portfolioService) cachedValueLocked() float64 {
	total := 0.0
	for _, h := range s.state.Holdings {
		if quote, ok := s.feed.LastQuote(h.AssetID); ok {
			total += h.CurrentValue(quote.Price)
		}
	}
	return total
}

// valueHoldingsAsync resolves each holding from the last known cache or an
// async fetch, joins on all of them and posts done(total) to d once.
// Failed resolutions contribute 0.
func (s *portfolioService) valueHoldingsAsync(ctx context.Context, d dispatch.Dispatcher, done func(float64)) {
	d = dispatch.OrInline(d)

	var (
		mu    sync.Mutex
		total float64
		wg    sync.WaitGroup
	)
	for _, h := range s.ListHoldings() {
		if quote, ok := s.feed.LastQuote(h.AssetID); ok {
			mu.Lock()
			total += h.CurrentValue(quote.Price)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		s.feed.FetchPriceAsync(ctx, h.AssetID, dispatch.Inline, func(quote domain.PriceQuote, err error) {
			defer wg.Done()
			if err != nil {
				s.logger.Debug("Valuing holding at zero", "asset", h.AssetID, "error", err)
				return
			}
			mu.Lock()
			total += h.CurrentValue(quote.Price)
			mu.Unlock()
		})
	}

	go func() {
		wg.Wait()
		mu.Lock()
		value := total
		mu.Unlock()
		if !d.Post(func() { done(value) }) {
			s.logger.Debug("Valuation callback dropped, dispatcher closed")
		}
	}()
}
