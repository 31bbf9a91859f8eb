// Package limiter implements the three layered parallelism limiters the
// session scheduler composes over every target apply operation: a global
// limiter, a per-group limiter, and a per-target limiter (spec.md §4.2).
//
// Limiters are the only globally shared mutable resource in the engine
// (spec.md §5); they are safe for concurrent use by construction, since
// they are thin wrappers over golang.org/x/sync/semaphore.Weighted — a
// weighted semaphore with permits, directly.
package limiter

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of concurrently in-flight actions.
type Limiter interface {
	// Acquire suspends until a permit is available or ctx is
	// canceled. On cancellation it acquires nothing.
	Acquire(ctx context.Context) error

	// Release returns one permit. Releasing more than was acquired is a
	// programmer error and panics, matching spec.md §8 invariant 1
	// ("Release() without a prior acquire throws").
	Release()

	// RequestedLimit is the limit as configured, before composition.
	RequestedLimit() int

	// EffectiveLimit is the limit actually enforced, after composition
	// with any other limiters.
	EffectiveLimit() int

	// AvailableCount is the number of permits currently free.
	AvailableCount() int64

	// Close marks the limiter unusable. Acquire/Release after Close
	// return/panic with an error indicating the limiter is disposed.
	// Double-close is a no-op.
	Close()
}

const unboundedEffectiveLimit = math.MaxInt32

// ErrDisposed is returned by Acquire (and wrapped in the panic raised by
// Release) once a limiter has been closed.
var ErrDisposed = fmt.Errorf("limiter: use of disposed limiter")

// weighted is a Limiter backed by a single semaphore.Weighted.
type weighted struct {
	requested int
	effective int64
	sem       *semaphore.Weighted
	acquired  int64 // atomic count of permits currently held, for conservation checks
	mu        sync.Mutex
	closed    bool
}

// New constructs a Limiter with the given limit. A non-positive limit means
// unbounded (spec.md §3's "non-positive ⇒ logical CPU count" convention is
// applied by callers before reaching here; a Limiter itself just enforces
// whatever limit it is given, with non-positive meaning "no cap").
func New(limit int) Limiter {
	eff := int64(limit)
	if limit <= 0 {
		eff = unboundedEffectiveLimit
	}
	return &weighted{
		requested: limit,
		effective: eff,
		sem:       semaphore.NewWeighted(eff),
	}
}

func (w *weighted) Acquire(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrDisposed
	}
	w.mu.Unlock()

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	atomic.AddInt64(&w.acquired, 1)
	return nil
}

func (w *weighted) Release() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		panic(ErrDisposed)
	}

	n := atomic.AddInt64(&w.acquired, -1)
	if n < 0 {
		atomic.AddInt64(&w.acquired, 1)
		panic(fmt.Errorf("limiter: Release called without a matching Acquire"))
	}
	w.sem.Release(1)
}

func (w *weighted) RequestedLimit() int { return w.requested }

func (w *weighted) EffectiveLimit() int {
	if w.effective >= unboundedEffectiveLimit {
		return math.MaxInt32
	}
	return int(w.effective)
}

func (w *weighted) AvailableCount() int64 {
	return w.effective - atomic.LoadInt64(&w.acquired)
}

func (w *weighted) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// nullLimiter never blocks and never runs out of permits. spec.md §4.2
// specifies RequestedLimit=1, EffectiveLimit=MaxInt for this limiter, used
// as the identity element when composing limiters.
type nullLimiter struct{}

// Null returns the shared null limiter singleton (spec.md §9: "lazy-loaded
// singletons... resolve to process-wide constants initialized once at
// startup").
func Null() Limiter { return nullLimiterInstance }

var nullLimiterInstance Limiter = nullLimiter{}

func (nullLimiter) Acquire(ctx context.Context) error { return nil }
func (nullLimiter) Release()                          {}
func (nullLimiter) RequestedLimit() int               { return 1 }
func (nullLimiter) EffectiveLimit() int               { return math.MaxInt32 }
func (nullLimiter) AvailableCount() int64             { return math.MaxInt32 }
func (nullLimiter) Close()                            {}
