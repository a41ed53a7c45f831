// Package vstore provides the public API for observable value stores.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-go/vstore"
//
// Usage:
//
//	count := vstore.New(0)
//	unsub := count.Subscribe(func(v int) { fmt.Println(v) })
//	count.Update(func(n int) int { return n + 1 })
//	unsub()
//
//	doubled := vstore.Derive(count, func(n int) int { return n * 2 })
//	fmt.Println(vstore.Get(doubled))
package vstore

import (
	"github.com/vango-go/vstore/pkg/store"
)

// =============================================================================
// Types (re-export from pkg/store)
// =============================================================================

type (
	Store[T any]         = store.Store[T]
	ReadableStore[T any] = store.ReadableStore[T]
	WritableStore[T any] = store.WritableStore[T]
	Subscriber[T any]    = store.Subscriber[T]
	Listener[T any]      = store.Listener[T]
	StartFunc[T any]     = store.StartFunc[T]
	StopFunc             = store.StopFunc
	Unsubscriber         = store.Unsubscriber
	Option               = store.Option
	Observer             = store.Observer
	NopObserver          = store.NopObserver
)

// ErrNoSources is returned when deriving from an empty list of stores.
var ErrNoSources = store.ErrNoSources

// =============================================================================
// Options
// =============================================================================

var (
	WithName     = store.WithName
	WithObserver = store.WithObserver
	WithLogger   = store.WithLogger
)

// =============================================================================
// Constructors
// =============================================================================

// New creates a writable store holding initial.
//
// Example:
//
//	user := vstore.New(User{Name: "Ada"})
//	user.Set(User{Name: "Grace"})
func New[T any](initial T, opts ...Option) *Store[T] {
	return store.New(initial, opts...)
}

// NewWithStart creates a writable store whose start function runs when the
// first subscriber arrives and whose stop function runs when the last leaves.
func NewWithStart[T any](initial T, start StartFunc[T], opts ...Option) *Store[T] {
	return store.NewWithStart(initial, start, opts...)
}

// Readable creates a store that only its start function can change.
//
// Example:
//
//	now := vstore.Readable(time.Now(), func(set func(time.Time), _ func(func(time.Time) time.Time)) vstore.StopFunc {
//	    t := time.NewTicker(time.Second)
//	    go func() {
//	        for v := range t.C {
//	            set(v)
//	        }
//	    }()
//	    return t.Stop
//	})
func Readable[T any](initial T, start StartFunc[T], opts ...Option) ReadableStore[T] {
	return store.Readable(initial, start, opts...)
}

// ReadOnly hides the write methods of s.
func ReadOnly[T any](s ReadableStore[T]) ReadableStore[T] {
	return store.ReadOnly(s)
}

// NewListener wraps fn in a Listener with a unique ID. Subscribing the same
// Listener twice registers it once.
func NewListener[T any](fn func(T)) Listener[T] {
	return store.NewListener(fn)
}

// Get reads the current value of s once.
func Get[T any](s ReadableStore[T]) T {
	return store.Get(s)
}

// =============================================================================
// Derived stores
// =============================================================================

// Derive creates a store computed from a.
func Derive[A, U any](a ReadableStore[A], fn func(A) U, opts ...Option) ReadableStore[U] {
	return store.Derive(a, fn, opts...)
}

// Derive2 creates a store computed from a and b.
func Derive2[A, B, U any](a ReadableStore[A], b ReadableStore[B], fn func(A, B) U, opts ...Option) ReadableStore[U] {
	return store.Derive2(a, b, fn, opts...)
}

// Derive3 creates a store computed from a, b and c.
func Derive3[A, B, C, U any](a ReadableStore[A], b ReadableStore[B], c ReadableStore[C], fn func(A, B, C) U, opts ...Option) ReadableStore[U] {
	return store.Derive3(a, b, c, fn, opts...)
}

// DeriveAll creates a store computed from any number of same-typed sources.
func DeriveAll[T, U any](sources []ReadableStore[T], fn func(values []T) U, opts ...Option) (ReadableStore[U], error) {
	return store.DeriveAll(sources, fn, opts...)
}

// DeriveWith creates a store from sources whose callback sets the value
// itself, possibly asynchronously. The returned StopFunc runs before the
// next call and when the store goes idle.
func DeriveWith[T, U any](sources []ReadableStore[T], initial U, fn func(values []T, set func(U)) StopFunc, opts ...Option) (ReadableStore[U], error) {
	return store.DeriveWith(sources, initial, fn, opts...)
}
