package store

import "sync"

// DeriveAll creates a read-only store whose value is fn applied to the
// current values of sources, in order.
//
// The derived store subscribes to its sources only while it has subscribers
// itself. Whenever any source notifies, fn is re-run with the latest value
// of every source. It returns ErrNoSources if sources is empty.
func DeriveAll[T, U any](sources []ReadableStore[T], fn func(values []T) U, opts ...Option) (ReadableStore[U], error) {
	var zero U
	return DeriveWith(sources, zero, func(values []T, set func(U)) StopFunc {
		set(fn(values))
		return nil
	}, opts...)
}

// DeriveWith creates a read-only store whose value is set by fn, which may
// call set at any time, including later from another goroutine. The store
// holds initial until fn first sets it.
//
// If fn returns a StopFunc it is called before fn runs again and when the
// derived store goes idle. It returns ErrNoSources if sources is empty.
func DeriveWith[T, U any](sources []ReadableStore[T], initial U, fn func(values []T, set func(U)) StopFunc, opts ...Option) (ReadableStore[U], error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	srcs := make([]ReadableStore[T], len(sources))
	copy(srcs, sources)

	start := func(set func(U), _ func(func(U) U)) StopFunc {
		d := &derivation[T, U]{
			fn:     fn,
			set:    set,
			values: make([]T, len(srcs)),
		}
		unsubs := make([]Unsubscriber, 0, len(srcs))

		// If a source or fn panics, release the sources already subscribed
		// before the panic leaves this activation behind.
		ok := false
		defer func() {
			if !ok {
				d.mu.Lock()
				d.unsubs = unsubs
				d.mu.Unlock()
				d.stop()
			}
		}()

		for i, src := range srcs {
			unsubs = append(unsubs, src.Subscribe(func(v T) {
				d.receive(i, v)
			}))
		}

		d.mu.Lock()
		d.unsubs = unsubs
		d.ready = true
		d.mu.Unlock()

		d.run()
		ok = true
		return d.stop
	}
	return Readable(initial, start, opts...), nil
}

// derivation is the per-activation state of a derived store.
type derivation[T, U any] struct {
	fn  func([]T, func(U)) StopFunc
	set func(U)

	mu      sync.Mutex
	values  []T
	unsubs  []Unsubscriber
	cleanup StopFunc

	// ready is false while the initial source replays arrive.
	ready   bool
	stopped bool
}

func (d *derivation[T, U]) receive(i int, v T) {
	d.mu.Lock()
	d.values[i] = v
	ready := d.ready && !d.stopped
	d.mu.Unlock()

	if ready {
		d.run()
	}
}

func (d *derivation[T, U]) run() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	values := make([]T, len(d.values))
	copy(values, d.values)
	prev := d.cleanup
	d.cleanup = nil
	d.mu.Unlock()

	if prev != nil {
		prev()
	}
	next := d.fn(values, d.set)

	d.mu.Lock()
	if d.stopped || d.cleanup != nil {
		// Stopped meanwhile, or a nested run already installed a newer
		// cleanup.
		d.mu.Unlock()
		if next != nil {
			next()
		}
		return
	}
	d.cleanup = next
	d.mu.Unlock()
}

func (d *derivation[T, U]) stop() {
	d.mu.Lock()
	d.stopped = true
	unsubs := d.unsubs
	d.unsubs = nil
	cleanup := d.cleanup
	d.cleanup = nil
	d.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cleanup != nil {
		cleanup()
	}
}

// Derive creates a read-only store whose value is fn applied to a's value.
func Derive[A, U any](a ReadableStore[A], fn func(A) U, opts ...Option) ReadableStore[U] {
	d, _ := DeriveAll([]ReadableStore[A]{a}, func(v []A) U {
		return fn(v[0])
	}, opts...)
	return d
}

// Derive2 creates a read-only store computed from two stores of any types.
func Derive2[A, B, U any](a ReadableStore[A], b ReadableStore[B], fn func(A, B) U, opts ...Option) ReadableStore[U] {
	d, _ := DeriveAll([]ReadableStore[any]{erase(a), erase(b)}, func(v []any) U {
		return fn(as[A](v[0]), as[B](v[1]))
	}, opts...)
	return d
}

// Derive3 creates a read-only store computed from three stores of any types.
func Derive3[A, B, C, U any](a ReadableStore[A], b ReadableStore[B], c ReadableStore[C], fn func(A, B, C) U, opts ...Option) ReadableStore[U] {
	d, _ := DeriveAll([]ReadableStore[any]{erase(a), erase(b), erase(c)}, func(v []any) U {
		return fn(as[A](v[0]), as[B](v[1]), as[C](v[2]))
	}, opts...)
	return d
}

// erased adapts a typed store to ReadableStore[any] so stores of different
// types can feed one derivation.
type erased[T any] struct {
	src ReadableStore[T]
}

func (e erased[T]) Subscribe(fn Subscriber[any]) Unsubscriber {
	return e.src.Subscribe(func(v T) {
		fn(v)
	})
}

func erase[T any](s ReadableStore[T]) ReadableStore[any] {
	return erased[T]{src: s}
}

// as converts back from any; a nil interface value yields the zero T.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}
