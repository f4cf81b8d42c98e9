package tracker

import (
	"sync/atomic"

	"papertrade/internal/dispatch"
)

// Subscription is the handle returned by Track. Untrack matches by identity,
// so the same observer registered twice yields two independent handles.
type Subscription struct {
	symbol     string
	dispatcher dispatch.Dispatcher
	observer   Observer
	active     atomic.Bool
}

// Symbol returns the tracked symbol.
func (s *Subscription) Symbol() string {
	return s.symbol
}

// Active reports whether the subscription still receives updates.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// deliver posts an update to the subscriber's dispatcher. The subscription is
// checked again when the task runs, so an update queued before Untrack is dropped.
func (s *Subscription) deliver(price, change float64) {
	symbol := s.symbol
	s.dispatcher.Post(func() {
		if !s.active.Load() {
			return
		}
		s.observer(symbol, price, change)
	})
}
