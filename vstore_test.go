package vstore_test

import (
	"errors"
	"testing"

	"github.com/vango-go/vstore"
)

func TestFacadeDerive(t *testing.T) {
	a := vstore.New(1, vstore.WithName("a"))
	b := vstore.New(2, vstore.WithName("b"))
	sum := vstore.Derive2[int, int, int](a, b, func(x, y int) int { return x + y })

	var got []int
	unsub := sum.Subscribe(func(v int) { got = append(got, v) })
	a.Set(10)
	unsub()

	if len(got) != 2 || got[0] != 3 || got[1] != 12 {
		t.Errorf("values = %v, want [3 12]", got)
	}
	if a.Listeners() != 0 || b.Listeners() != 0 {
		t.Error("sources should be idle after the derived store is released")
	}
}

func TestFacadeGetReadOnly(t *testing.T) {
	s := vstore.New("x")
	ro := vstore.ReadOnly[string](s)
	if _, ok := ro.(vstore.WritableStore[string]); ok {
		t.Error("ReadOnly should hide Set")
	}
	if got := vstore.Get(ro); got != "x" {
		t.Errorf("Get() = %q, want x", got)
	}
}

func TestFacadeDeriveAllEmpty(t *testing.T) {
	_, err := vstore.DeriveAll[int, int](nil, func([]int) int { return 0 })
	if !errors.Is(err, vstore.ErrNoSources) {
		t.Errorf("DeriveAll(nil) error = %v, want ErrNoSources", err)
	}
}
