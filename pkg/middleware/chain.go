package middleware

import (
	"time"

	"github.com/vango-go/vstore/pkg/store"
)

// chain fans every event out to several observers in order.
type chain []store.Observer

// Chain combines observers into one. Nil observers are skipped.
//
//	obs := middleware.Chain(
//	    middleware.Logger(logger),
//	    middleware.Prometheus(),
//	    middleware.OpenTelemetry(),
//	)
func Chain(observers ...store.Observer) store.Observer {
	c := make(chain, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			c = append(c, o)
		}
	}
	if len(c) == 1 {
		return c[0]
	}
	return c
}

func (c chain) Subscribed(name string, listeners int) {
	for _, o := range c {
		o.Subscribed(name, listeners)
	}
}

func (c chain) Unsubscribed(name string, listeners int) {
	for _, o := range c {
		o.Unsubscribed(name, listeners)
	}
}

func (c chain) Activated(name string) {
	for _, o := range c {
		o.Activated(name)
	}
}

func (c chain) Deactivated(name string) {
	for _, o := range c {
		o.Deactivated(name)
	}
}

func (c chain) Notified(name string, listeners int, elapsed time.Duration) {
	for _, o := range c {
		o.Notified(name, listeners, elapsed)
	}
}

func (c chain) ListenerPanicked(name string, recovered any) {
	for _, o := range c {
		o.ListenerPanicked(name, recovered)
	}
}
