// Package task provides a cancellable handle for work running on its own goroutine.
//
// An Operation reaches exactly one terminal outcome: it succeeds, fails, or is
// canceled. Done is closed once that outcome is known, whichever it is.
package task

import (
	"context"
	"errors"
	"fmt"
)

// ErrPanicked is wrapped by the error of an operation whose function panicked.
var ErrPanicked = errors.New("task panicked")

// Outcome is the state of an Operation.
type Outcome int

const (
	Running Outcome = iota
	Succeeded
	Failed
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Classify maps an operation error to its terminal outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Succeeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	default:
		return Failed
	}
}

// Operation is a handle to a function started by Start.
type Operation[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	// written once before done is closed
	val T
	err error
}

// Start runs fn on a new goroutine with a cancellable child of ctx.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Operation[T] {
	ctx, cancel := context.WithCancel(ctx)
	op := &Operation[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(op.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				op.err = fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()
		op.val, op.err = fn(ctx)
	}()

	return op
}

// Cancel requests cancellation. The operation decides how quickly it stops;
// cancelling a finished operation has no effect.
func (o *Operation[T]) Cancel() { o.cancel() }

// Done is closed when the operation has reached its terminal outcome.
func (o *Operation[T]) Done() <-chan struct{} { return o.done }

// Wait blocks until the operation finishes and returns its result. If ctx ends
// first, Wait returns ctx.Err() and the operation keeps running.
func (o *Operation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the operation's error, or nil while it is still running.
func (o *Operation[T]) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Outcome reports the current state of the operation.
func (o *Operation[T]) Outcome() Outcome {
	select {
	case <-o.done:
		return Classify(o.err)
	default:
		return Running
	}
}
