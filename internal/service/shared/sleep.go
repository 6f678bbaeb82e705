package shared

import (
	"context"
	"time"
)

// SleepOrDone waits for d, returning ctx.Err() early if ctx ends first.
// A non-positive d returns nil immediately, even on a done context.
func SleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
