// Package loading aggregates many concurrent operations into a single
// "is anything still running?" flag.
//
// An Aggregator counts operations between Begin and End and publishes
// IsLoading (count > 0) to subscribers only when it flips. Track, TrackFunc
// and Go attach an operation's lifetime to that count so that End runs exactly
// once on success, failure, or cancellation.
package loading

import (
	"context"
	"sync"

	"github.com/iliamunaev/taskload/internal/service/inflight"
	"github.com/iliamunaev/taskload/internal/service/observable"
)

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithUnderflowHook registers fn to be called when End finds nothing in
// flight. The count still floors at zero; the hook only reports.
// fn runs inside the aggregator's critical section and must not call back into it.
func WithUnderflowHook(fn func()) Option {
	return func(a *Aggregator) {
		a.onUnderflow = fn
	}
}

var _ observable.Source[bool] = (*Aggregator)(nil)

// Aggregator derives a loading flag from the number of in-flight operations.
// The zero value is not usable; create one with New.
type Aggregator struct {
	// mu serializes counter mutation, derivation and publication.
	mu      sync.Mutex
	counter inflight.Counter
	loading *observable.Value[bool]
	// idle is closed whenever nothing is in flight.
	idle chan struct{}

	onUnderflow func()
}

// New returns an idle Aggregator.
func New(opts ...Option) *Aggregator {
	idle := make(chan struct{})
	close(idle)

	a := &Aggregator{
		loading: observable.New(false),
		idle:    idle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Begin registers one in-flight operation. Every Begin must be paired with
// exactly one later End.
func (a *Aggregator) Begin() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.counter.Inc()
	if n == 1 {
		a.idle = make(chan struct{})
	}
	a.loading.Set(n > 0)
}

// End unregisters one in-flight operation. Calling it with nothing in flight
// is a no-op.
func (a *Aggregator) End() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.counter.Dec()
	if !ok {
		if a.onUnderflow != nil {
			a.onUnderflow()
		}
		return
	}
	if n == 0 {
		close(a.idle)
	}
	a.loading.Set(n > 0)
}

// IsLoading reports whether at least one operation is in flight.
func (a *Aggregator) IsLoading() bool {
	if a == nil {
		return false
	}
	return a.loading.Load()
}

// Subscribe calls fn with the current loading state and then with every
// change, in the order the changes happened. On a nil Aggregator it returns
// a stopped subscription and fn is never called.
func (a *Aggregator) Subscribe(fn func(bool)) *observable.Subscription[bool] {
	if a == nil {
		return observable.Stopped[bool]()
	}
	return a.loading.Subscribe(fn)
}

// WaitIdle blocks until nothing is in flight or ctx is done.
func (a *Aggregator) WaitIdle(ctx context.Context) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	idle := a.idle
	a.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
