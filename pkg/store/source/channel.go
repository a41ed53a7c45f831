package source

import (
	"time"

	"github.com/vango-go/vstore/pkg/store"
)

// Channel creates a store holding the latest value received on ch.
//
// ch is only read while the store is active; values sent while it is idle
// stay in the channel. The store keeps its last value once ch is closed.
func Channel[T any](ch <-chan T, initial T, opts ...store.Option) store.ReadableStore[T] {
	return store.Readable(initial, func(set func(T), _ func(func(T) T)) store.StopFunc {
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case v, ok := <-ch:
					if !ok {
						return // Channel closed
					}
					select {
					case <-done:
						return
					default:
					}
					set(v)
				}
			}
		}()
		return func() { close(done) }
	}, opts...)
}

// Poll creates a store whose value is fn(), evaluated when the store becomes
// active and then every interval while it stays active. It panics if interval
// is not positive.
func Poll[T any](interval time.Duration, fn func() T, opts ...store.Option) store.ReadableStore[T] {
	if interval <= 0 {
		panic("source: non-positive Poll interval")
	}
	var zero T
	return store.Readable(zero, func(set func(T), _ func(func(T) T)) store.StopFunc {
		set(fn())

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					set(fn())
				}
			}
		}()
		return func() { close(done) }
	}, opts...)
}

// Ticker creates a store holding the current time, refreshed every interval
// while the store is active. It panics if interval is not positive.
func Ticker(interval time.Duration, opts ...store.Option) store.ReadableStore[time.Time] {
	return Poll(interval, time.Now, opts...)
}
