package observable

import (
	"runtime"
	"sync/atomic"
	"weak"
)

// AssignWeakly subscribes to src and writes every delivered value into root
// through assign, without keeping root alive. Once root has been garbage
// collected the binding unsubscribes itself, whether or not another value
// is ever delivered.
//
// assign must not capture root; it receives it as its first argument.
func AssignWeakly[T any, R any](src Source[T], root *R, assign func(*R, T)) *Subscription[T] {
	wp := weak.Make(root)

	var self atomic.Pointer[Subscription[T]]
	sub := src.Subscribe(func(x T) {
		r := wp.Value()
		if r == nil {
			// The cleanup below detaches a binding that is not stored yet.
			if s := self.Load(); s != nil {
				s.Unsubscribe()
			}
			return
		}
		assign(r, x)
	})
	self.Store(sub)

	// root stays reachable until this call, so the cleanup always runs after
	// the subscription exists.
	runtime.AddCleanup(root, (*Subscription[T]).Unsubscribe, sub)
	return sub
}
