package store

// Listener is a subscriber with a stable identity. Stores deduplicate
// listeners by ListenerID, which plain func values cannot provide.
type Listener[T any] interface {
	// ListenerID returns a unique identifier for this listener.
	ListenerID() uint64

	// Notify receives the store's value.
	Notify(value T)
}

type funcListener[T any] struct {
	id uint64
	fn func(T)
}

func (l *funcListener[T]) ListenerID() uint64 { return l.id }
func (l *funcListener[T]) Notify(v T)         { l.fn(v) }

// NewListener wraps fn in a Listener with a fresh ID. Subscribing the same
// Listener to a store more than once results in a single registration.
func NewListener[T any](fn func(T)) Listener[T] {
	return &funcListener[T]{id: nextID(), fn: fn}
}
