// Package pool provides a bounded concurrency semaphore for job slots.
package pool

import "context"

// MaxSize is the largest number of slots a Pool can hold.
const MaxSize = 128

// Pool limits how many jobs hold a slot at once.
type Pool struct {
	sem chan struct{}
}

// New creates a pool with size slots, clamped to [1, MaxSize].
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	if size > MaxSize {
		size = MaxSize
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Acquire reserves one slot, blocking while the pool is full.
// It returns ctx.Err() if ctx ends before a slot frees up.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	<-p.sem
}

// Size returns the number of slots.
func (p *Pool) Size() int { return cap(p.sem) }

// InUse returns the number of slots currently held.
func (p *Pool) InUse() int { return len(p.sem) }
