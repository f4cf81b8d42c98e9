// Package dispatch provides the execution contexts callbacks are delivered on.
//
// A Loop is the foreground: one goroutine draining a queue of tasks, which
// must never block on network I/O. Contexts derived with WithForeground carry
// that restriction so blocking APIs can fail fast instead of stalling the loop.
package dispatch

import (
	"context"
	"sync"
)

// Dispatcher runs tasks on some execution context.
// Post reports false when the task was dropped because the context is gone.
type Dispatcher interface {
	Post(task func()) bool
}

type inline struct{}

func (inline) Post(task func()) bool {
	task()
	return true
}

// Inline runs every task immediately on the posting goroutine.
var Inline Dispatcher = inline{}

// Func adapts a function to the Dispatcher interface.
type Func func(task func()) bool

// Post calls f(task).
func (f Func) Post(task func()) bool { return f(task) }

// OrInline returns d, or Inline when d is nil.
func OrInline(d Dispatcher) Dispatcher {
	if d == nil {
		return Inline
	}
	return d
}

type foregroundKey struct{}

// WithForeground marks ctx as belonging to a context that must not block.
func WithForeground(ctx context.Context) context.Context {
	return context.WithValue(ctx, foregroundKey{}, true)
}

// WithBackground clears the foreground mark, for work handed off to a worker.
func WithBackground(ctx context.Context) context.Context {
	if !IsForeground(ctx) {
		return ctx
	}
	return context.WithValue(ctx, foregroundKey{}, false)
}

// IsForeground reports whether ctx is marked as foreground.
func IsForeground(ctx context.Context) bool {
	fg, _ := ctx.Value(foregroundKey{}).(bool)
	return fg
}

// Loop executes posted tasks one at a time on the goroutine that calls Run.
type Loop struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop whose queue holds up to buffer pending tasks.
// Post blocks while the queue is full.
func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues task. It returns false once the loop has been closed.
func (l *Loop) Post(task func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- task:
		return true
	}
}

// Run drains the queue until ctx is cancelled or Close is called.
// Tasks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case task := <-l.tasks:
			task()
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Context returns ctx marked as foreground, for tasks running on this loop.
func (l *Loop) Context(ctx context.Context) context.Context {
	return WithForeground(ctx)
}
