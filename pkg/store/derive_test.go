package store

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDeriveRecompute(t *testing.T) {
	a := New(1)
	b := New(2)
	sum, err := DeriveAll([]ReadableStore[int]{a, b}, func(v []int) int {
		return v[0] + v[1]
	})
	if err != nil {
		t.Fatalf("DeriveAll error: %v", err)
	}

	var rec recorder[int]
	defer sum.Subscribe(rec.fn)()

	a.Set(10)
	b.Set(5)

	if got := rec.got(); !reflect.DeepEqual(got, []int{3, 12, 15}) {
		t.Errorf("got %v, want [3 12 15]", got)
	}
}

func TestDeriveNoSources(t *testing.T) {
	d, err := DeriveAll([]ReadableStore[int]{}, func(v []int) int { return len(v) })
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("error = %v, want ErrNoSources", err)
	}
	if d != nil {
		t.Error("expected nil store on error")
	}

	_, err = DeriveWith[int, int](nil, 0, func([]int, func(int)) StopFunc { return nil })
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("DeriveWith error = %v, want ErrNoSources", err)
	}
}

func TestDeriveIsLazy(t *testing.T) {
	a := New(1)
	calls := 0
	d := Derive(a, func(n int) int {
		calls++
		return n * 2
	})

	if a.Listeners() != 0 {
		t.Errorf("source has %d listeners before derived is subscribed", a.Listeners())
	}
	a.Set(2)
	if calls != 0 {
		t.Errorf("derivation ran %d times while idle", calls)
	}

	unsub := d.Subscribe(func(int) {})
	if a.Listeners() != 1 {
		t.Errorf("source has %d listeners while derived is active, want 1", a.Listeners())
	}
	unsub()
	if a.Listeners() != 0 {
		t.Errorf("source has %d listeners after derived went idle, want 0", a.Listeners())
	}
}

func TestDeriveSharesSourceSubscription(t *testing.T) {
	a := New(1)
	d := Derive(a, func(n int) int { return n + 1 })

	u1 := d.Subscribe(func(int) {})
	u2 := d.Subscribe(func(int) {})
	if a.Listeners() != 1 {
		t.Errorf("source listeners = %d, want 1", a.Listeners())
	}
	u1()
	if a.Listeners() != 1 {
		t.Errorf("source listeners = %d after one derived unsubscribe, want 1", a.Listeners())
	}
	u2()
	if a.Listeners() != 0 {
		t.Errorf("source listeners = %d, want 0", a.Listeners())
	}
}

func TestDerive2MixedTypes(t *testing.T) {
	name := New("ada")
	age := New(36)
	label := Derive2(name, age, func(n string, a int) string {
		return strings.ToUpper(n) + ":" + strconv.Itoa(a)
	})

	var rec recorder[string]
	defer label.Subscribe(rec.fn)()
	age.Set(37)

	if got := rec.got(); !reflect.DeepEqual(got, []string{"ADA:36", "ADA:37"}) {
		t.Errorf("got %v", got)
	}
}

func TestDerive3(t *testing.T) {
	a, b, c := New(1), New(2.5), New(true)
	d := Derive3(a, b, c, func(x int, y float64, z bool) float64 {
		if !z {
			return 0
		}
		return float64(x) + y
	})

	if got := Get(d); got != 3.5 {
		t.Errorf("Get = %v, want 3.5", got)
	}
	c.Set(false)
	if got := Get(d); got != 0 {
		t.Errorf("Get = %v, want 0", got)
	}
}

func TestDerive2NilInterfaceValue(t *testing.T) {
	errStore := New[error](nil)
	count := New(0)
	d := Derive2(errStore, count, func(err error, n int) bool {
		return err == nil && n == 0
	})
	if !Get(d) {
		t.Error("expected true for nil error and zero count")
	}
}

func TestDeriveChain(t *testing.T) {
	a := New(2)
	doubled := Derive(a, func(n int) int { return n * 2 })
	quadrupled := Derive(doubled, func(n int) int { return n * 2 })

	var rec recorder[int]
	unsub := quadrupled.Subscribe(rec.fn)
	a.Set(3)
	unsub()

	if got := rec.got(); !reflect.DeepEqual(got, []int{8, 12}) {
		t.Errorf("got %v, want [8 12]", got)
	}
	if a.Listeners() != 0 {
		t.Errorf("root listeners = %d after chain went idle, want 0", a.Listeners())
	}
}

func TestDeriveWithAsyncSetAndCleanup(t *testing.T) {
	query := New("a")
	var mu sync.Mutex
	var cleaned []string

	results, err := DeriveWith([]ReadableStore[string]{query}, "loading", func(v []string, set func(string)) StopFunc {
		q := v[0]
		set("result:" + q)
		return func() {
			mu.Lock()
			cleaned = append(cleaned, q)
			mu.Unlock()
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	var rec recorder[string]
	unsub := results.Subscribe(rec.fn)
	query.Set("b")
	unsub()

	if got := rec.got(); !reflect.DeepEqual(got, []string{"result:a", "result:b"}) {
		t.Errorf("got %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(cleaned, []string{"a", "b"}) {
		t.Errorf("cleaned = %v, want [a b]", cleaned)
	}
}

func TestDeriveWithInitialValueUntilSet(t *testing.T) {
	src := New(1)
	release := make(chan struct{})
	done := make(chan struct{})

	d, err := DeriveWith([]ReadableStore[int]{src}, -1, func(v []int, set func(int)) StopFunc {
		n := v[0]
		go func() {
			<-release
			set(n * 100)
			close(done)
		}()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var rec recorder[int]
	defer d.Subscribe(rec.fn)()

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if got := rec.got(); !reflect.DeepEqual(got, []int{-1, 100}) {
		t.Errorf("got %v, want [-1 100]", got)
	}
}

func TestDeriveReentrantSourceSet(t *testing.T) {
	a := New(0)
	d := Derive(a, func(n int) int { return n })

	// Clamp the source from a derived listener.
	defer d.Subscribe(func(n int) {
		if n > 10 {
			a.Set(10)
		}
	})()

	a.Set(50)
	if got := Get(d); got != 10 {
		t.Errorf("derived = %d, want 10", got)
	}
}

func TestGetLeavesListenerCountUnchanged(t *testing.T) {
	starts := 0
	s := NewWithStart(5, func(set func(int), update func(func(int) int)) StopFunc {
		starts++
		return nil
	})

	if got := Get[int](s); got != 5 {
		t.Errorf("Get = %d, want 5", got)
	}
	if s.Listeners() != 0 {
		t.Errorf("Listeners() = %d, want 0", s.Listeners())
	}

	keep := s.Subscribe(func(int) {})
	defer keep()
	_ = Get[int](s)
	if s.Listeners() != 1 {
		t.Errorf("Listeners() = %d, want 1", s.Listeners())
	}
	if starts != 2 {
		t.Errorf("starts = %d, want 2", starts)
	}
}

func TestReadableAndReadOnly(t *testing.T) {
	r := Readable(7, nil)
	if _, ok := r.(WritableStore[int]); ok {
		t.Error("Readable should not expose Set")
	}
	if Get(r) != 7 {
		t.Errorf("Get = %d, want 7", Get(r))
	}

	w := New(1)
	ro := ReadOnly[int](w)
	if _, ok := ro.(WritableStore[int]); ok {
		t.Error("ReadOnly should not expose Set")
	}
	w.Set(2)
	if Get(ro) != 2 {
		t.Errorf("Get = %d, want 2", Get(ro))
	}
	if ReadOnly(ro) != ro {
		t.Error("ReadOnly of a read-only store should return it unchanged")
	}
}

// brokenStore panics on Subscribe.
type brokenStore struct{}

func (brokenStore) Subscribe(Subscriber[int]) Unsubscriber {
	panic("subscribe failed")
}

func TestDerivePanickingSourceReleasesOthers(t *testing.T) {
	a := New(1)
	d, err := DeriveAll([]ReadableStore[int]{a, brokenStore{}}, func(v []int) int {
		return v[0] + v[1]
	})
	if err != nil {
		t.Fatalf("DeriveAll error: %v", err)
	}

	func() {
		defer func() {
			if r := recover(); r != "subscribe failed" {
				t.Errorf("recovered %v, want subscribe failed", r)
			}
		}()
		d.Subscribe(func(int) {})
	}()

	if a.Listeners() != 0 {
		t.Errorf("source has %d listeners after failed activation, want 0", a.Listeners())
	}
}

func TestDerivePanickingFnReleasesSources(t *testing.T) {
	a := New(1)
	b := New(2)
	d, err := DeriveAll([]ReadableStore[int]{a, b}, func(v []int) int {
		if v[0] == 1 {
			panic("derive failed")
		}
		return v[0]
	})
	if err != nil {
		t.Fatalf("DeriveAll error: %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		d.Subscribe(func(int) {})
	}()

	if a.Listeners() != 0 || b.Listeners() != 0 {
		t.Errorf("sources have %d and %d listeners, want 0 and 0", a.Listeners(), b.Listeners())
	}
}
