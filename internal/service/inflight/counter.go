// Package inflight provides a floor-at-zero counter of running operations.
package inflight

import "sync"

// Counter counts in-flight operations. The zero value is ready to use.
// The count never goes below zero.
type Counter struct {
	mu sync.Mutex
	n  int64
}

// Inc increments the counter and returns the new count.
func (c *Counter) Inc() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.n++
	return c.n
}

// Dec decrements the counter if it is positive. It returns the resulting
// count and whether a decrement happened; ok is false for an underflow attempt.
func (c *Counter) Dec() (n int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.n == 0 {
		return 0, false
	}
	c.n--
	return c.n, true
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
