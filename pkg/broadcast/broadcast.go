package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives values from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns a channel for receiving broadcast values.
	// The context parameter allows implementations to respect cancellation
	// during blocking operations; the in-memory implementation does not use
	// it but keeps it for interface consistency across adapters.
	Receive(ctx context.Context) <-chan T

	// Close closes the subscriber and releases resources.
	// After Close, the receive channel is closed and no more values will be
	// received. Close is idempotent and safe to call multiple times.
	Close() error
}

// Broadcaster sends values to multiple subscribers.
// Implementations should handle slow consumers gracefully,
// typically by dropping values rather than blocking.
type Broadcaster[T any] interface {
	// Subscribe creates a new subscriber that will receive all broadcast values.
	// When the context is cancelled, the subscription is automatically cleaned up.
	Subscribe(ctx context.Context) Subscriber[T]

	// Broadcast sends a value to all active subscribers.
	// Values may be dropped for slow consumers to prevent blocking.
	Broadcast(ctx context.Context, value T) error

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

type subscriber[T any] struct {
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{
		ch: make(chan T, bufferSize),
	}
}

func (s *subscriber[T]) Receive(ctx context.Context) <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

func (s *subscriber[T]) send(value T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- value:
		return true
	default:
		return false
	}
}
