package store

// readOnly exposes only Subscribe of the wrapped store.
type readOnly[T any] struct {
	src ReadableStore[T]
}

func (r readOnly[T]) Subscribe(fn Subscriber[T]) Unsubscriber {
	return r.src.Subscribe(fn)
}

// Readable creates a store that can only be changed by its start function.
func Readable[T any](initial T, start StartFunc[T], opts ...Option) ReadableStore[T] {
	return readOnly[T]{src: NewWithStart(initial, start, opts...)}
}

// ReadOnly hides the write methods of s.
func ReadOnly[T any](s ReadableStore[T]) ReadableStore[T] {
	if r, ok := s.(readOnly[T]); ok {
		return r
	}
	return readOnly[T]{src: s}
}

// Get returns the current value of s by subscribing and immediately
// unsubscribing. A store with a start function is activated and deactivated
// again in the process.
func Get[T any](s ReadableStore[T]) T {
	var value T
	unsub := s.Subscribe(func(v T) {
		value = v
	})
	unsub()
	return value
}
