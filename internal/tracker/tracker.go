// Package tracker polls the price feed for a set of tracked symbols and fans
// updates out to registered observers.
package tracker

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"papertrade/internal/dispatch"
	"papertrade/internal/domain"
	"papertrade/internal/metrics"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = time.Second

// State is the lifecycle state of the service.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Observer receives price updates for one symbol.
type Observer func(symbol string, price, change24h float64)

// QuoteFetcher fetches quotes for several assets at once, one result per id.
type QuoteFetcher interface {
	FetchMarketData(ctx context.Context, assetIDs []string) map[string]domain.QuoteResult
}

// symbolMapper is implemented by feeds that translate asset ids to canonical symbols.
type symbolMapper interface {
	Symbol(assetID string) string
}

// Config configures the tracker.
type Config struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Service is the price tracking service. It is safe for concurrent use.
type Service struct {
	feed      QuoteFetcher
	canonical func(string) string
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	subs       map[string]map[*Subscription]struct{}
	state      State
	generation uint64
	cancel     context.CancelFunc
}

// NewService creates an idle tracker.
func NewService(feed QuoteFetcher, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	canonical := func(symbol string) string { return strings.ToUpper(strings.TrimSpace(symbol)) }
	if mapper, ok := feed.(symbolMapper); ok {
		canonical = mapper.Symbol
	}
	return &Service{
		feed:      feed,
		canonical: canonical,
		interval:  interval,
		metrics:   m,
		logger:    logger.With("component", "tracker"),
		subs:      make(map[string]map[*Subscription]struct{}),
	}
}

// Track registers observer for symbol. Updates are posted to d, or run on
// the polling goroutine when d is nil. The first subscription starts polling.
// The symbol is canonicalized first, so "btc", "BTC" and "bitcoin" (with a
// feed that maps ids) share one polled entry.
func (s *Service) Track(symbol string, d dispatch.Dispatcher, observer Observer) *Subscription {
	symbol = s.canonical(symbol)
	sub := &Subscription{
		symbol:     symbol,
		dispatcher: dispatch.OrInline(d),
		observer:   observer,
	}
	sub.active.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[symbol]
	if !ok {
		set = make(map[*Subscription]struct{})
		s.subs[symbol] = set
	}
	set[sub] = struct{}{}
	s.metrics.TrackedSymbols.Set(float64(len(s.subs)))

	if s.state == Idle {
		s.startLocked()
	}
	return sub
}

// Untrack removes the subscription. Removing the last subscription of the
// last symbol stops polling. Unknown or already removed handles are ignored.
func (s *Service) Untrack(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.active.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[sub.symbol]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(s.subs, sub.symbol)
	}
	s.metrics.TrackedSymbols.Set(float64(len(s.subs)))

	if len(s.subs) == 0 {
		s.stopLocked()
	}
}

// UntrackAll drops every subscription and stops polling. Updates still queued
// on a dispatcher are dropped when they run, so no observer is invoked after
// UntrackAll returns on that dispatcher's goroutine. An observer delivered
// inline (nil dispatcher) may still finish a call that started before
// UntrackAll returned.
func (s *Service) UntrackAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.subs {
		for sub := range set {
			sub.active.Store(false)
		}
	}
	s.subs = make(map[string]map[*Subscription]struct{})
	s.metrics.TrackedSymbols.Set(0)
	s.stopLocked()
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tracked returns the tracked symbols in sorted order.
func (s *Service) Tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackedLocked()
}

// Len returns the number of tracked symbols.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Service) trackedLocked() []string {
	symbols := make([]string, 0, len(s.subs))
	for symbol := range s.subs {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (s *Service) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.generation++
	s.cancel = cancel
	s.state = Polling
	s.logger.Debug("Polling started", "interval", s.interval)

	go s.run(ctx, s.generation)
}

func (s *Service) stopLocked() {
	if s.state == Idle {
		return
	}
	s.cancel()
	s.cancel = nil
	s.generation++
	s.state = Idle
	s.logger.Debug("Polling stopped")
}

// run ticks until ctx is cancelled. Ticks execute serially on this goroutine,
// and ticks missed while a fetch is in flight are dropped by the ticker.
func (s *Service) run(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, generation)
		}
	}
}

func (s *Service) tick(ctx context.Context, generation uint64) {
	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return
	}
	symbols := s.trackedLocked()
	s.mu.Unlock()

	if len(symbols) == 0 {
		return
	}

	results := s.feed.FetchMarketData(ctx, symbols)

	type update struct {
		sub   *Subscription
		quote domain.PriceQuote
	}
	var updates []update
	failed := 0

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.metrics.TrackerTicks.WithLabelValues("discarded").Inc()
		return
	}
	for _, symbol := range symbols {
		res, ok := results[symbol]
		if !ok || res.Err != nil {
			failed++
			s.logger.Warn("Price update skipped", "symbol", symbol, "error", res.Err)
			continue
		}
		for sub := range s.subs[symbol] {
			updates = append(updates, update{sub: sub, quote: res.Quote})
		}
	}
	s.mu.Unlock()

	// Posting happens outside the lock so observers may call back into the service.
	for _, u := range updates {
		u.sub.deliver(u.quote.Price, u.quote.Change24h)
	}

	outcome := metrics.OutcomeSuccess
	if failed > 0 {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.TrackerTicks.WithLabelValues(outcome).Inc()
}
