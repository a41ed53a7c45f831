// Package store provides observable value containers.
//
// A Store holds one current value. Subscribers are called synchronously with
// the current value when they subscribe, and again on every Set or Update:
//
//	count := store.New(0)
//	unsub := count.Subscribe(func(n int) {
//	    fmt.Println("count is", n)
//	})                                   // prints "count is 0"
//	count.Set(1)                         // prints "count is 1"
//	count.Update(func(n int) int { return n + 1 })
//	unsub()
//
// Set never compares values: setting the same value twice notifies twice.
//
// # Lifecycle
//
// A store is idle while it has no subscribers and active otherwise. A store
// created with a StartFunc runs it when the first subscriber arrives and runs
// the returned StopFunc when the last one leaves:
//
//	clock := store.Readable(time.Now(), func(set func(time.Time), _ func(func(time.Time) time.Time)) store.StopFunc {
//	    t := time.NewTicker(time.Second)
//	    done := make(chan struct{})
//	    go func() {
//	        for {
//	            select {
//	            case now := <-t.C:
//	                set(now)
//	            case <-done:
//	                return
//	            }
//	        }
//	    }()
//	    return func() {
//	        t.Stop()
//	        close(done)
//	    }
//	})
//
// # Derived stores
//
// Derived stores compute their value from one or more sources. They subscribe
// to their sources only while they have subscribers of their own:
//
//	total := store.Derive2(a, b, func(x, y int) int { return x + y })
//
// # Reentrancy and listener failures
//
// A subscriber may call Set on the store that is notifying it. The nested Set
// runs its own notification pass before the outer pass continues. Each pass
// iterates over the subscribers registered when it started, skipping any that
// unsubscribed in the meantime.
//
// A subscriber is never called while a previous call to it is still running.
// A value committed during such a call is held back and delivered as soon as
// it returns; when several pile up only the newest is delivered. Once a
// subscriber has seen a value, it is never handed an older one, so the outer
// pass of a nested Set skips subscribers that already saw the newer value.
//
// A panicking subscriber aborts the rest of its pass and the panic propagates
// to the caller of Set, Update or Subscribe. The value has already been
// stored and the subscriber set stays intact. Observers see the panic through
// ListenerPanicked before it is re-raised.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Callbacks run without any store
// lock held. Passes from different goroutines may overlap, but each subscriber
// sees values in commit order and always ends on the latest one. Update and
// TryUpdate are atomic: a write that lands while the transformation runs
// makes it retry against the newer value.
package store
