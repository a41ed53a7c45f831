package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber receives a store's value on subscription and on every change.
type Subscriber[T any] func(value T)

// Unsubscriber removes a subscription. Calling it more than once is a no-op.
type Unsubscriber func()

// StopFunc releases whatever a StartFunc acquired.
type StopFunc func()

// StartFunc runs when a store gains its first subscriber. It may call set
// and update to change the store's value, now or later, and may return a
// StopFunc that runs when the store loses its last subscriber.
type StartFunc[T any] func(set func(T), update func(func(T) T)) StopFunc

// ReadableStore is anything that can be subscribed to.
type ReadableStore[T any] interface {
	Subscribe(fn Subscriber[T]) Unsubscriber
}

// WritableStore is a ReadableStore whose value can be replaced by its holders.
type WritableStore[T any] interface {
	ReadableStore[T]
	Set(value T)
	Update(fn func(T) T)
}

// entryKey identifies a registration. Plain subscriptions and listeners
// draw their ids from separate spaces, so the kind is part of the key.
type entryKey struct {
	listener bool
	id       uint64
}

// entry is one registered subscriber.
//
// Deliveries to an entry are serialized: while fn runs, newer values are
// parked in pending and delivered once it returns. lastVer keeps an entry
// from ever moving back to an older value.
type entry[T any] struct {
	key     entryKey
	fn      func(T)
	removed atomic.Bool

	mu      sync.Mutex
	busy    bool
	lastVer uint64
	pending T
	pendVer uint64
}

// Store is an observable value container.
//
// The zero value is not usable; create stores with New, NewWithStart or
// Readable.
type Store[T any] struct {
	id     uint64
	name   string
	start  StartFunc[T]
	obs    Observer
	logger *slog.Logger

	// mu guards everything below. It is never held while user callbacks run.
	mu       sync.Mutex
	value    T
	subs     []*entry[T]
	stop     StopFunc
	starting bool

	// version counts commits. Update uses it to detect a write that
	// landed while its transformation was running.
	version uint64

	// gen is bumped on every idle/active transition so that a StartFunc
	// that returns after the store went idle again can be detected.
	gen uint64
}

var (
	_ WritableStore[int] = (*Store[int])(nil)
)

// New creates a writable store holding initial.
func New[T any](initial T, opts ...Option) *Store[T] {
	return NewWithStart(initial, nil, opts...)
}

// NewWithStart creates a writable store holding initial whose start function
// runs on every idle to active transition. start may be nil.
func NewWithStart[T any](initial T, start StartFunc[T], opts ...Option) *Store[T] {
	id := nextID()
	o := buildOptions(id, opts)
	return &Store[T]{
		id:      id,
		name:    o.name,
		start:   start,
		obs:     o.observer,
		logger:  o.logger,
		value:   initial,
		version: 1,
	}
}

// ID returns the unique identifier for this store.
func (s *Store[T]) ID() uint64 {
	return s.id
}

// Name returns the store's name.
func (s *Store[T]) Name() string {
	return s.name
}

// Value returns the current value without subscribing.
func (s *Store[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Listeners returns the number of registered subscribers.
func (s *Store[T]) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Active reports whether the store has at least one subscriber.
func (s *Store[T]) Active() bool {
	return s.Listeners() > 0
}

// Subscribe registers fn and calls it with the current value before
// returning. Every call registers a new subscription, even for the same
// function; use SubscribeListener for deduplicated registration.
func (s *Store[T]) Subscribe(fn Subscriber[T]) Unsubscriber {
	return s.subscribe(entryKey{id: nextID()}, fn)
}

// SubscribeListener registers l, deduplicated by l.ListenerID(). Registering
// a listener that is already subscribed adds nothing, but l is still called
// with the current value and the returned Unsubscriber removes the single
// shared registration.
func (s *Store[T]) SubscribeListener(l Listener[T]) Unsubscriber {
	return s.subscribe(entryKey{listener: true, id: l.ListenerID()}, l.Notify)
}

func (s *Store[T]) subscribe(key entryKey, fn func(T)) Unsubscriber {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	e := s.find(key)
	duplicate := e != nil
	activated := false
	var gen uint64
	if !duplicate {
		e = &entry[T]{key: key, fn: fn}
		s.subs = append(s.subs, e)
		if len(s.subs) == 1 {
			s.gen++
			gen = s.gen
			activated = true
		}
	}
	count := len(s.subs)
	s.mu.Unlock()

	unsub := s.unsubscriber(key)

	// A panic in start or in the replay must not leave a registration
	// behind that nobody holds a handle to.
	ok := false
	defer func() {
		if !ok {
			unsub()
		}
	}()

	s.obs.Subscribed(s.name, count)
	if activated {
		s.activate(gen)
	}

	s.mu.Lock()
	value, ver := s.value, s.version
	s.mu.Unlock()
	if duplicate {
		// The registration already exists; the caller still gets its replay.
		s.call(fn, value)
	} else {
		s.deliver(e, value, ver)
	}

	ok = true
	return unsub
}

// activate runs the start function for the activation numbered gen.
func (s *Store[T]) activate(gen uint64) {
	s.logger.Debug("store activated", "store", s.name)
	s.obs.Activated(s.name)
	if s.start == nil {
		return
	}

	s.mu.Lock()
	s.starting = true
	s.mu.Unlock()

	stop := func() StopFunc {
		defer func() {
			s.mu.Lock()
			s.starting = false
			s.mu.Unlock()
		}()
		return s.start(s.Set, s.Update)
	}()

	s.mu.Lock()
	if s.gen != gen {
		// Went idle while start was running.
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

func (s *Store[T]) unsubscriber(key entryKey) Unsubscriber {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.unsubscribe(key)
		})
	}
}

func (s *Store[T]) unsubscribe(key entryKey) {
	s.mu.Lock()
	idx := -1
	for i, e := range s.subs {
		if e.key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.subs[idx].removed.Store(true)
	s.subs = append(s.subs[:idx:idx], s.subs[idx+1:]...)
	count := len(s.subs)

	var stop StopFunc
	deactivated := count == 0
	if deactivated {
		stop = s.stop
		s.stop = nil
		s.gen++
	}
	s.mu.Unlock()

	s.obs.Unsubscribed(s.name, count)
	if deactivated {
		if stop != nil {
			stop()
		}
		s.logger.Debug("store deactivated", "store", s.name)
		s.obs.Deactivated(s.name)
	}
}

func (s *Store[T]) find(key entryKey) *entry[T] {
	for _, e := range s.subs {
		if e.key == key {
			return e
		}
	}
	return nil
}

// Set replaces the value and notifies every subscriber, even when value is
// equal to the previous one.
//
// Sets made by a StartFunc while it is starting only store the value; the
// subscriber that triggered the start receives it through its replay.
func (s *Store[T]) Set(value T) {
	s.commit(value, 0)
}

// Update sets the value to fn applied to the current value. If fn panics the
// value is left unchanged and nobody is notified.
//
// fn runs without the store locked. When another write lands while fn is
// running, fn is called again with the newer value, so it may run more than
// once and must not write to the store itself.
func (s *Store[T]) Update(fn func(T) T) {
	for {
		cur, ver := s.snapshot()
		if s.commit(fn(cur), ver) {
			return
		}
	}
}

// TryUpdate is Update for fallible transformations. When fn returns an error
// the value is left unchanged, nobody is notified and the error is returned.
func (s *Store[T]) TryUpdate(fn func(T) (T, error)) error {
	for {
		cur, ver := s.snapshot()
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if s.commit(next, ver) {
			return nil
		}
	}
}

func (s *Store[T]) snapshot() (T, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.version
}

// commit stores value and runs a notification pass. A non-zero expect makes
// the commit conditional on the version still being expect.
func (s *Store[T]) commit(value T, expect uint64) bool {
	s.mu.Lock()
	if expect != 0 && s.version != expect {
		s.mu.Unlock()
		return false
	}
	s.value = value
	s.version++
	ver := s.version
	if s.starting {
		s.mu.Unlock()
		return true
	}
	subs := make([]*entry[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	began := time.Now()
	for _, e := range subs {
		s.deliver(e, value, ver)
	}
	s.obs.Notified(s.name, len(subs), time.Since(began))
	return true
}

// deliver hands the value committed as ver to one subscriber. It is dropped
// when the subscriber is gone or has already seen a newer value, and parked
// when the subscriber is still handling an earlier one.
func (s *Store[T]) deliver(e *entry[T], value T, ver uint64) {
	if e.removed.Load() {
		return
	}

	e.mu.Lock()
	if ver <= e.lastVer {
		e.mu.Unlock()
		return
	}
	if e.busy {
		if ver > e.pendVer {
			e.pending, e.pendVer = value, ver
		}
		e.mu.Unlock()
		return
	}
	e.busy = true
	e.lastVer = ver
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			var zero T
			e.mu.Lock()
			e.busy = false
			e.pending, e.pendVer = zero, 0
			e.mu.Unlock()
			s.obs.ListenerPanicked(s.name, r)
			panic(r)
		}
	}()

	for {
		e.fn(value)

		e.mu.Lock()
		if e.pendVer <= e.lastVer || e.removed.Load() {
			var zero T
			e.busy = false
			e.pending, e.pendVer = zero, 0
			e.mu.Unlock()
			return
		}
		value, ver = e.pending, e.pendVer
		e.lastVer = ver
		e.mu.Unlock()
	}
}

// call runs fn outside any entry, reporting a panic before re-raising it.
func (s *Store[T]) call(fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			s.obs.ListenerPanicked(s.name, r)
			panic(r)
		}
	}()
	fn(value)
}
