// Package metrics holds the Prometheus collectors of the portfolio engine,
// the price feed and the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "papertrade"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics is the set of collectors shared by the application components.
type Metrics struct {
	registry *prometheus.Registry

	// Price feed
	PriceFetches       *prometheus.CounterVec // labels: outcome
	PriceFetchDuration prometheus.Histogram
	ResponseCacheHits  prometheus.Counter
	ResponseCacheMiss  prometheus.Counter

	// Tracker
	TrackerTicks   *prometheus.CounterVec // labels: outcome
	TrackedSymbols prometheus.Gauge

	// Portfolio engine
	Trades              *prometheus.CounterVec // labels: kind, outcome
	PersistenceFailures prometheus.Counter
	Balance             prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PriceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "fetches_total",
			Help:      "Ticker fetches by outcome",
		}, []string{"outcome"}),
		PriceFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "fetch_duration_seconds",
			Help:      "Ticker request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ResponseCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "response_cache_hits_total",
			Help:      "Ticker requests served from the response cache",
		}),
		ResponseCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "response_cache_misses_total",
			Help:      "Ticker requests that went to the exchange",
		}),
		TrackerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "ticks_total",
			Help:      "Polling ticks by outcome",
		}, []string{"outcome"}),
		TrackedSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tracked_symbols",
			Help:      "Symbols currently polled",
		}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "trades_total",
			Help:      "Buy and sell attempts by outcome",
		}, []string{"kind", "outcome"}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "persistence_failures_total",
			Help:      "Portfolio writes that failed",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "balance",
			Help:      "Current virtual cash balance",
		}),
	}

	m.registry.MustRegister(
		m.PriceFetches,
		m.PriceFetchDuration,
		m.ResponseCacheHits,
		m.ResponseCacheMiss,
		m.TrackerTicks,
		m.TrackedSymbols,
		m.Trades,
		m.PersistenceFailures,
		m.Balance,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
