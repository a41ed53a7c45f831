package store

import (
	"log/slog"
	"strconv"
	"time"
)

// Observer receives lifecycle and notification events from a store.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	// Subscribed is called after a subscriber is registered.
	// listeners is the new subscriber count.
	Subscribed(name string, listeners int)

	// Unsubscribed is called after a subscriber is removed.
	Unsubscribed(name string, listeners int)

	// Activated is called on the idle to active transition, before the
	// StartFunc runs.
	Activated(name string)

	// Deactivated is called on the active to idle transition, after the
	// StopFunc has run.
	Deactivated(name string)

	// Notified is called after a notification pass completes.
	Notified(name string, listeners int, elapsed time.Duration)

	// ListenerPanicked is called with the recovered value before a
	// subscriber's panic is re-raised.
	ListenerPanicked(name string, recovered any)
}

// NopObserver ignores every event. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) Subscribed(string, int)              {}
func (NopObserver) Unsubscribed(string, int)            {}
func (NopObserver) Activated(string)                    {}
func (NopObserver) Deactivated(string)                  {}
func (NopObserver) Notified(string, int, time.Duration) {}
func (NopObserver) ListenerPanicked(string, any)        {}

// Option configures a store.
type Option func(*options)

type options struct {
	name     string
	observer Observer
	logger   *slog.Logger
}

// WithName sets the name reported to observers and logs.
// The default is "store-<id>".
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithObserver attaches an observer to the store.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithLogger sets the logger used for lifecycle debug logs.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(id uint64, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = "store-" + strconv.FormatUint(id, 10)
	}
	if o.observer == nil {
		o.observer = NopObserver{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
