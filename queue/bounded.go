// Package queue implements the bounded hand-off channels between the rover's producers and the
// navigation consumer. A full queue drops the item being offered, never one already queued, and
// never blocks a producer for longer than the timeout it asked for.
package queue

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/rover/logging"
)

// dropWarningInterval bounds how often a persistently full queue logs.
const dropWarningInterval = time.Second

// Bounded is a single-writer, single-reader channel of fixed capacity with drop-newest semantics.
type Bounded[T any] struct {
	name    string
	items   chan T
	clk     clock.Clock
	logger  logging.Logger
	dropped atomic.Uint64
	warn    *rate.Limiter
}

// NewBounded returns an empty queue holding at most capacity items.
func NewBounded[T any](name string, capacity int, clk clock.Clock, logger logging.Logger) (*Bounded[T], error) {
	if capacity < 1 {
		return nil, errors.Errorf("queue %q capacity must be positive, got %d", name, capacity)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Bounded[T]{
		name:   name,
		items:  make(chan T, capacity),
		clk:    clk,
		logger: logger,
		warn:   rate.NewLimiter(rate.Every(dropWarningInterval), 1),
	}, nil
}

// Name returns the name the queue logs under.
func (b *Bounded[T]) Name() string {
	return b.name
}

// TrySend enqueues item if there is room and reports whether it did. A full queue drops item.
func (b *Bounded[T]) TrySend(item T) bool {
	select {
	case b.items <- item:
		return true
	default:
	}
	b.drop()
	return false
}

// Send enqueues item, waiting up to timeout for room. A timeout of zero or less behaves like
// TrySend. If room does not appear in time, item is dropped. Send also gives up, without counting
// a drop, when ctx is done.
func (b *Bounded[T]) Send(ctx context.Context, item T, timeout time.Duration) bool {
	if timeout <= 0 {
		return b.TrySend(item)
	}
	select {
	case b.items <- item:
		return true
	default:
	}

	timer := b.clk.Timer(timeout)
	defer timer.Stop()
	select {
	case b.items <- item:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	b.drop()
	return false
}

// Receive dequeues the oldest item, waiting up to timeout for one to arrive. The boolean is false
// when nothing arrived in time or ctx is done.
func (b *Bounded[T]) Receive(ctx context.Context, timeout time.Duration) (T, bool) {
	var zero T
	select {
	case item := <-b.items:
		return item, true
	default:
	}
	if timeout <= 0 {
		return zero, false
	}

	timer := b.clk.Timer(timeout)
	defer timer.Stop()
	select {
	case item := <-b.items:
		return item, true
	case <-ctx.Done():
		return zero, false
	case <-timer.C:
		return zero, false
	}
}

// Len returns the number of queued items.
func (b *Bounded[T]) Len() int {
	return len(b.items)
}

// Cap returns the queue capacity.
func (b *Bounded[T]) Cap() int {
	return cap(b.items)
}

// Dropped returns how many items have been dropped because the queue was full.
func (b *Bounded[T]) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bounded[T]) drop() {
	total := b.dropped.Inc()
	if b.warn.AllowN(b.clk.Now(), 1) {
		b.logger.Warnw("channel full, dropping newest", "queue", b.name, "capacity", cap(b.items), "dropped_total", total)
	}
}
