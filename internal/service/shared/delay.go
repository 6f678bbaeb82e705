// Package shared provides helper functions used by service steps,
// such as delay resolution and cancellation-aware sleeps.
package shared

import "time"

// DelayFor returns ms as a duration when it is positive, otherwise defaultDelay.
func DelayFor(ms int64, defaultDelay time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultDelay
}
