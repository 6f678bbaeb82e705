package loading

import (
	"context"

	"github.com/iliamunaev/taskload/internal/service/task"
)

// Handle is an in-flight operation whose Done channel is closed once it
// reaches a terminal outcome. *task.Operation and context.Context satisfy it.
type Handle interface {
	Done() <-chan struct{}
}

// Track counts h as in flight on a until h is done, and returns h unchanged.
//
// Begin runs before Track returns. End runs exactly once, after h.Done() is
// closed, regardless of whether h succeeded, failed, or was canceled. Track
// holds a for as long as h runs, so a must outlive the operations it tracks.
//
// h.Done() is called on the caller's goroutine before Begin, so a handle that
// cannot produce its channel (such as a nil *task.Operation) panics there and
// leaves a untouched.
func Track[H Handle](h H, a *Aggregator) H {
	done := h.Done()
	a.Begin()
	endWhenDone(done, a)
	return h
}

func endWhenDone(done <-chan struct{}, a *Aggregator) {
	go func() {
		defer a.End()
		<-done
	}()
}

// TrackFunc runs fn synchronously, counting it as in flight on a for its
// duration. fn's error is returned unchanged, and End runs even if fn panics.
func TrackFunc(ctx context.Context, a *Aggregator, fn func(context.Context) error) error {
	a.Begin()
	defer a.End()

	return fn(ctx)
}

// Go starts fn as a task tracked on a. Begin runs before fn is started.
func Go[T any](ctx context.Context, a *Aggregator, fn func(context.Context) (T, error)) *task.Operation[T] {
	a.Begin()
	op := task.Start(ctx, fn)
	endWhenDone(op.Done(), a)
	return op
}
