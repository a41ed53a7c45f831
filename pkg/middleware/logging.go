package middleware

import (
	"log/slog"
	"time"

	"github.com/vango-go/vstore/pkg/store"
)

// Logging is a store.Observer that writes lifecycle events to a slog.Logger.
// Subscription and notification events are logged at Debug, panics at Error.
type Logging struct {
	logger *slog.Logger

	// SlowNotify, when positive, logs notification passes that take at
	// least this long at Warn.
	SlowNotify time.Duration
}

var _ store.Observer = (*Logging)(nil)

// Logger creates a logging observer. A nil logger uses slog.Default().
func Logger(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (l *Logging) Subscribed(name string, listeners int) {
	l.logger.Debug("store subscribed", "store", name, "listeners", listeners)
}

func (l *Logging) Unsubscribed(name string, listeners int) {
	l.logger.Debug("store unsubscribed", "store", name, "listeners", listeners)
}

func (l *Logging) Activated(name string) {
	l.logger.Debug("store activated", "store", name)
}

func (l *Logging) Deactivated(name string) {
	l.logger.Debug("store deactivated", "store", name)
}

func (l *Logging) Notified(name string, listeners int, elapsed time.Duration) {
	if l.SlowNotify > 0 && elapsed >= l.SlowNotify {
		l.logger.Warn("slow store notification",
			"store", name,
			"listeners", listeners,
			"elapsed", elapsed,
		)
		return
	}
	l.logger.Debug("store notified", "store", name, "listeners", listeners, "elapsed", elapsed)
}

func (l *Logging) ListenerPanicked(name string, recovered any) {
	l.logger.Error("store subscriber panicked", "store", name, "panic", recovered)
}
