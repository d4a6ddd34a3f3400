// Package event provides the single-slot channels that connect the fader
// controller to the tasks around it.
package event

import (
	"context"
	"sync"
)

// Signal holds at most one pending value. Publishing overwrites any value not
// yet taken, so a waiter only ever sees the most recent one. It is safe for
// any number of publishers and waiters; each published value is delivered to
// exactly one waiter.
type Signal[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	ready   chan struct{} // closed while a value is pending
}

// NewSignal creates an empty Signal.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{ready: make(chan struct{})}
}

// Publish stores v, replacing any pending value, and wakes a waiter.
func (s *Signal[T]) Publish(v T) {
	s.mu.Lock()
	s.value = v
	if !s.pending {
		s.pending = true
		close(s.ready)
	}
	s.mu.Unlock()
}

// Wait blocks until a value is pending or ctx is done, then takes the value.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	for {
		if v, ok := s.TryTake(); ok {
			return v, nil
		}

		s.mu.Lock()
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
			// Another waiter may win the value; loop and try again.
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryTake takes the pending value without blocking.
func (s *Signal[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if !s.pending {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.pending = false
	s.ready = make(chan struct{})
	return v, true
}

// Pending reports whether a value is waiting to be taken.
func (s *Signal[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Reset drops any pending value.
func (s *Signal[T]) Reset() {
	s.TryTake()
}
