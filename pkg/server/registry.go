package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vango-go/vstore/pkg/persist"
	"github.com/vango-go/vstore/pkg/store"
	"github.com/vango-go/vstore/pkg/store/source"
)

var null = json.RawMessage("null")

// Entry is a named store served by the hub. Values are raw JSON.
type Entry struct {
	name     string
	readable store.ReadableStore[json.RawMessage]
	writable *store.Store[json.RawMessage]
	binding  *persist.Binding
	subs     atomic.Int64
}

// Name returns the store name.
func (e *Entry) Name() string {
	return e.name
}

// Writable reports whether the store accepts Set.
func (e *Entry) Writable() bool {
	return e.writable != nil
}

// Get returns the current value. Read-only stores are activated for the
// read if nobody is subscribed.
func (e *Entry) Get() json.RawMessage {
	var v json.RawMessage
	if e.writable != nil {
		v = e.writable.Value()
	} else {
		v = store.Get(e.readable)
	}
	if v == nil {
		return null
	}
	return v
}

// Set replaces the value and notifies subscribers.
func (e *Entry) Set(v json.RawMessage) error {
	if e.writable == nil {
		return ErrReadOnly
	}
	if !json.Valid(v) {
		return ErrInvalidValue
	}
	e.writable.Set(append(json.RawMessage(nil), v...))
	return nil
}

// Subscribe registers fn for every value, starting with the current one.
func (e *Entry) Subscribe(fn func(json.RawMessage)) store.Unsubscriber {
	e.subs.Add(1)
	unsub := e.readable.Subscribe(func(v json.RawMessage) {
		if v == nil {
			v = null
		}
		fn(v)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			e.subs.Add(-1)
			unsub()
		})
	}
}

// Listeners returns the number of subscriptions made through the hub.
func (e *Entry) Listeners() int {
	return int(e.subs.Load())
}

// Info describes a store in the list endpoint.
type Info struct {
	Name      string `json:"name"`
	Listeners int    `json:"listeners"`
	Writable  bool   `json:"writable"`
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStoreOptions adds options applied to every store the registry
// creates, typically store.WithObserver.
func WithStoreOptions(opts ...store.Option) RegistryOption {
	return func(r *Registry) {
		r.storeOpts = append(r.storeOpts, opts...)
	}
}

// WithBackend enables persistence for stores created with persist=true.
func WithBackend(b persist.Backend) RegistryOption {
	return func(r *Registry) {
		r.backend = b
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry holds the named stores served by a hub.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	storeOpts []store.Option
	backend   persist.Backend
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*Entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) options(name string) []store.Option {
	opts := make([]store.Option, 0, len(r.storeOpts)+2)
	opts = append(opts, r.storeOpts...)
	return append(opts, store.WithName(name), store.WithLogger(r.logger))
}

// Create registers a writable store. A nil initial value is JSON null.
// When persistent is true and the registry has a backend, the store is
// restored from and saved to the backend under its name.
func (r *Registry) Create(ctx context.Context, name string, initial json.RawMessage, persistent bool) (*Entry, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidValue)
	}
	if initial == nil {
		initial = null
	}
	if !json.Valid(initial) {
		return nil, ErrInvalidValue
	}

	r.mu.RLock()
	_, exists := r.entries[name]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}

	s := store.New(initial, r.options(name)...)
	e := &Entry{name: name, readable: s, writable: s}

	if persistent && r.backend != nil {
		b, err := persist.Bind[json.RawMessage](ctx, s, r.backend, name, persist.WithLogger(r.logger))
		if err != nil {
			return nil, err
		}
		e.binding = b
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		if e.binding != nil {
			e.binding.Close()
		}
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	r.entries[name] = e
	r.mu.Unlock()

	r.logger.Debug("store registered", "store", name, "writable", true, "persistent", e.binding != nil)
	return e, nil
}

// AddReadable registers a read-only store.
func (r *Registry) AddReadable(name string, s store.ReadableStore[json.RawMessage]) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	e := &Entry{name: name, readable: store.ReadOnly(s)}
	r.entries[name] = e

	r.logger.Debug("store registered", "store", name, "writable", false)
	return e, nil
}

// AddFile registers a read-only store that follows a JSON, YAML or TOML
// file. The file is watched only while the store has subscribers.
func (r *Registry) AddFile(name, path string, opts ...source.FileOption) (*Entry, error) {
	fileOpts := append([]source.FileOption{
		source.WithFileLogger(r.logger),
		source.WithStoreOptions(store.WithName(name + ".file")),
	}, opts...)

	file := source.File[any](path, nil, fileOpts...)
	encoded := store.Derive(file, func(v any) json.RawMessage {
		data, err := json.Marshal(v)
		if err != nil {
			r.logger.Error("file value is not JSON-encodable", "store", name, "path", path, "error", err)
			return null
		}
		return data
	}, r.options(name)...)

	return r.AddReadable(name, encoded)
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// GetOrCreate returns the entry for name, creating an empty persistent
// writable store if none exists.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (*Entry, error) {
	if e, err := r.Lookup(name); err == nil {
		return e, nil
	}
	e, err := r.Create(ctx, name, nil, true)
	if errors.Is(err, ErrExists) {
		return r.Lookup(name)
	}
	return e, err
}

// List returns every store sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, Info{
			Name:      e.name,
			Listeners: e.Listeners(),
			Writable:  e.Writable(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close flushes and stops every persistence binding.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if e.binding == nil {
			continue
		}
		if err := e.binding.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}
