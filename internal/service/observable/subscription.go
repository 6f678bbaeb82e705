package observable

import "sync"

// Subscription is a registered listener on a Value.
type Subscription[T any] struct {
	fn     func(T)
	detach func()

	mu    sync.Mutex
	queue []T
	wake  chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

func newSubscription[T any](fn func(T)) *Subscription[T] {
	return &Subscription[T]{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Stopped returns a subscription that never delivers.
func Stopped[T any]() *Subscription[T] {
	s := newSubscription[T](nil)
	s.stop()
	return s
}

// Unsubscribe stops delivery. Values still queued are dropped; a callback
// already running is allowed to finish. It is safe to call more than once and
// from inside the subscriber's own callback.
func (s *Subscription[T]) Unsubscribe() {
	if s == nil {
		return
	}
	if s.detach != nil {
		s.detach()
	}
	s.stop()
}

// Done is closed once the subscription has been stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription[T]) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Subscription[T]) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription[T]) enqueue(x T) {
	s.mu.Lock()
	s.queue = append(s.queue, x)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) next() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.queue) == 0 {
		return zero, false
	}
	x := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return x, true
}

func (s *Subscription[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			x, ok := s.next()
			if !ok {
				break
			}
			if s.stopped() {
				return
			}
			s.fn(x)
		}
	}
}
