// Package observable provides a value holder that pushes changes to
// subscribers in the order they were produced.
//
// Every subscription owns one delivery goroutine fed by an unbounded FIFO,
// so a slow subscriber never blocks Set and never observes values out of order.
package observable

import (
	"runtime"
	"sync"
)

// Source is anything that can be subscribed to for values of T.
type Source[T any] interface {
	Subscribe(fn func(T)) *Subscription[T]
}

var _ Source[bool] = (*Value[bool])(nil)

// Value holds the latest value of T and notifies subscribers when it changes.
//
// Delivery goroutines reference only the inner state, never the Value, so a
// dropped Value can be collected; its subscriptions are then stopped.
type Value[T comparable] struct {
	st *state[T]
}

type state[T comparable] struct {
	mu     sync.Mutex
	cur    T
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
}

// New creates a Value holding initial.
func New[T comparable](initial T) *Value[T] {
	st := &state[T]{
		cur:  initial,
		subs: make(map[uint64]*Subscription[T]),
	}
	v := &Value[T]{st: st}
	runtime.AddCleanup(v, (*state[T]).close, st)
	return v
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	st := v.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cur
}

// Set stores x and publishes it to every subscriber if it differs from the
// current value. It reports whether the value changed.
func (v *Value[T]) Set(x T) bool {
	st := v.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if x == st.cur {
		return false
	}
	st.cur = x
	// Enqueue while holding the lock so all subscribers share one order.
	for _, s := range st.subs {
		s.enqueue(x)
	}
	return true
}

// Subscribe registers fn. It is called with the current value first and then
// with every later distinct value, one call at a time.
//
// Subscribing to a closed Value returns a subscription that never delivers.
func (v *Value[T]) Subscribe(fn func(T)) *Subscription[T] {
	st := v.st
	s := newSubscription(fn)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		s.stop()
		return s
	}

	id := st.nextID
	st.nextID++
	st.subs[id] = s
	s.detach = func() { st.remove(id) }
	s.enqueue(st.cur)

	go s.run()
	return s
}

// Close unsubscribes every subscriber. Later Set calls still update the value.
func (v *Value[T]) Close() {
	v.st.close()
}

// Subscribers returns the number of active subscriptions.
func (v *Value[T]) Subscribers() int {
	st := v.st
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.subs)
}

func (st *state[T]) close() {
	st.mu.Lock()
	subs := st.subs
	st.subs = make(map[uint64]*Subscription[T])
	st.closed = true
	st.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (st *state[T]) remove(id uint64) {
	st.mu.Lock()
	delete(st.subs, id)
	st.mu.Unlock()
}
