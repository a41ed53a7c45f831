package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-go/vstore/pkg/store"
)

// Codec converts store values to and from snapshot bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// JSON is the default codec.
var JSON Codec = jsonCodec{}

// BindOption configures Bind.
type BindOption func(*bindConfig)

type bindConfig struct {
	codec       Codec
	logger      *slog.Logger
	onError     func(key string, err error)
	saveTimeout time.Duration
}

// WithCodec sets the snapshot codec. Default: JSON.
func WithCodec(c Codec) BindOption {
	return func(cfg *bindConfig) {
		cfg.codec = c
	}
}

// WithLogger sets the logger for save failures. Default: slog.Default().
func WithLogger(logger *slog.Logger) BindOption {
	return func(cfg *bindConfig) {
		cfg.logger = logger
	}
}

// WithErrorHandler registers a callback for encode and save failures.
func WithErrorHandler(fn func(key string, err error)) BindOption {
	return func(cfg *bindConfig) {
		cfg.onError = fn
	}
}

// WithSaveTimeout bounds each backend save. Default: 10s.
func WithSaveTimeout(d time.Duration) BindOption {
	return func(cfg *bindConfig) {
		cfg.saveTimeout = d
	}
}

// Binding keeps a backend snapshot in sync with a store.
//
// Values are encoded synchronously when the store notifies and written by a
// background goroutine; bursts of changes are coalesced into one write of
// the latest value.
type Binding struct {
	key     string
	backend Backend
	cfg     bindConfig
	unsub   store.Unsubscriber

	mu      sync.Mutex
	latest  []byte
	pending bool
	lastErr error

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Bind restores s from the snapshot stored under key, if any, and then saves
// every value s takes until the returned Binding is closed.
func Bind[T any](ctx context.Context, s store.WritableStore[T], backend Backend, key string, opts ...BindOption) (*Binding, error) {
	cfg := bindConfig{
		codec:       JSON,
		logger:      slog.Default(),
		saveTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := backend.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("persist: load %s: %w", key, err)
	}
	if data != nil {
		var v T
		if err := cfg.codec.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("persist: decode %s: %w", key, err)
		}
		s.Set(v)
	}

	b := &Binding{
		key:     key,
		backend: backend,
		cfg:     cfg,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.writeLoop()

	b.unsub = s.Subscribe(func(v T) {
		encoded, err := cfg.codec.Marshal(v)
		if err != nil {
			b.report(fmt.Errorf("persist: encode %s: %w", key, err))
			return
		}
		b.mu.Lock()
		b.latest = encoded
		b.pending = true
		b.mu.Unlock()

		select {
		case b.kick <- struct{}{}:
		default:
		}
	})
	return b, nil
}

// Key returns the snapshot key.
func (b *Binding) Key() string {
	return b.key
}

func (b *Binding) writeLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.kick:
			b.flush()
		case <-b.done:
			b.flush()
			return
		}
	}
}

func (b *Binding) flush() {
	b.mu.Lock()
	if !b.pending {
		b.mu.Unlock()
		return
	}
	data := b.latest
	b.pending = false
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.saveTimeout)
	defer cancel()
	if err := b.backend.Save(ctx, b.key, data); err != nil {
		b.report(err)
	}
}

func (b *Binding) report(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()

	b.cfg.logger.Error("store snapshot failed", "key", b.key, "error", err)
	if b.cfg.onError != nil {
		b.cfg.onError(b.key, err)
	}
}

// Close unsubscribes from the store, writes any pending value and stops the
// writer. It returns the most recent encode or save error, if any.
func (b *Binding) Close() error {
	b.closeOnce.Do(func() {
		b.unsub()
		close(b.done)
		b.wg.Wait()
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}
