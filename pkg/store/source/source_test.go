package source

import (
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-go/vstore/pkg/store"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestChannelForwardsValues(t *testing.T) {
	ch := make(chan int)
	s := Channel(ch, 0)

	var last atomic.Int64
	unsub := s.Subscribe(func(n int) { last.Store(int64(n)) })
	defer unsub()

	ch <- 1
	ch <- 2
	waitFor(t, func() bool { return last.Load() == 2 })
}

func TestChannelIdleDoesNotConsume(t *testing.T) {
	ch := make(chan int, 1)
	s := Channel(ch, 0)

	unsub := s.Subscribe(func(int) {})
	unsub()
	time.Sleep(20 * time.Millisecond)

	ch <- 5
	// Nobody reads while idle; the buffered value must still be there.
	time.Sleep(20 * time.Millisecond)
	if len(ch) != 1 {
		t.Fatalf("channel len = %d while idle, want 1", len(ch))
	}

	var last atomic.Int64
	defer s.Subscribe(func(n int) { last.Store(int64(n)) })()
	waitFor(t, func() bool { return last.Load() == 5 })
}

func TestChannelClosed(t *testing.T) {
	ch := make(chan string, 1)
	ch <- "last"
	close(ch)
	s := Channel(ch, "first")

	var got atomic.Value
	defer s.Subscribe(func(v string) { got.Store(v) })()
	waitFor(t, func() bool { return got.Load() == "last" })
}

func TestPollRefreshesWhileActive(t *testing.T) {
	var calls atomic.Int64
	s := Poll(5*time.Millisecond, func() int64 {
		return calls.Add(1)
	})

	var last atomic.Int64
	unsub := s.Subscribe(func(n int64) { last.Store(n) })
	if last.Load() < 1 {
		t.Errorf("replay = %d, want at least 1", last.Load())
	}
	waitFor(t, func() bool { return last.Load() >= 3 })
	unsub()

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	// At most one tick may race with the stop signal.
	if calls.Load() > stopped+1 {
		t.Errorf("poll kept running while idle: %d calls after stop at %d", calls.Load(), stopped)
	}
}

func TestTickerGet(t *testing.T) {
	before := time.Now()
	now := store.Get(Ticker(time.Hour))
	if now.Before(before) {
		t.Errorf("ticker value %v is before %v", now, before)
	}
}

func TestPollRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Poll(%v) did not panic", interval)
				}
			}()
			Poll(interval, func() int { return 1 })
		}()
	}
}

func TestDecoderFor(t *testing.T) {
	for _, ext := range []string{"a.json", "a.yaml", "a.YML", "a.toml"} {
		if _, err := DecoderFor(ext); err != nil {
			t.Errorf("DecoderFor(%q) error: %v", ext, err)
		}
	}
	if _, err := DecoderFor("a.ini"); err == nil {
		t.Error("expected error for .ini")
	}
}

type flags struct {
	Name    string   `json:"name" yaml:"name" toml:"name"`
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Tags    []string `json:"tags" yaml:"tags" toml:"tags"`
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	want := flags{Name: "beta", Enabled: true, Tags: []string{"a", "b"}}

	files := map[string]string{
		"flags.json": `{"name":"beta","enabled":true,"tags":["a","b"]}`,
		"flags.yaml": "name: beta\nenabled: true\ntags: [a, b]\n",
		"flags.toml": "name = \"beta\"\nenabled = true\ntags = [\"a\", \"b\"]\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		dec, err := DecoderFor(path)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Load[flags](path, dec)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%s: got %+v, want %+v", name, got, want)
		}
	}
}

func TestFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.yaml")
	if err := os.WriteFile(path, []byte("name: one\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := File(path, flags{Name: "initial"})

	var name atomic.Value
	unsub := s.Subscribe(func(f flags) { name.Store(f.Name) })
	defer unsub()

	if name.Load() != "one" {
		t.Fatalf("replay name = %v, want one", name.Load())
	}

	if err := os.WriteFile(path, []byte("name: two\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return name.Load() == "two" })
}

func TestFileMissingKeepsInitial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	s := File(path, flags{Name: "initial"})
	if got := store.Get(s); got.Name != "initial" {
		t.Errorf("Name = %q, want initial", got.Name)
	}
}

func TestFileDecodeErrorKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.json")
	if err := os.WriteFile(path, []byte(`{"name":"good"}`), 0644); err != nil {
		t.Fatal(err)
	}

	s := File(path, flags{})
	var name atomic.Value
	defer s.Subscribe(func(f flags) { name.Store(f.Name) })()

	if err := os.WriteFile(path, []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if name.Load() != "good" {
		t.Errorf("name = %v after bad write, want good", name.Load())
	}

	if err := os.WriteFile(path, []byte(`{"name":"fixed"}`), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return name.Load() == "fixed" })
}
