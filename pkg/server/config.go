package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-go/vstore/pkg/middleware"
)

// Config holds hub configuration.
type Config struct {
	// Address is the listen address (default ":7070").
	Address string

	// AutoCreate creates a writable store on the first PUT to an unknown
	// name instead of returning 404.
	AutoCreate bool

	// ReadTimeout is the websocket read deadline. Pongs extend it.
	// Default: 60s.
	ReadTimeout time.Duration

	// WriteTimeout bounds each websocket write. Default: 10s.
	WriteTimeout time.Duration

	// PingInterval is how often the hub pings each connection.
	// Must be less than ReadTimeout. Default: ReadTimeout * 9 / 10.
	PingInterval time.Duration

	// SendBuffer is the number of frames queued per connection. A
	// connection whose buffer is full is dropped. Default: 64.
	SendBuffer int

	// MaxMessageSize limits client frames and PUT bodies in bytes.
	// Default: 1 MiB.
	MaxMessageSize int64

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// CheckOrigin validates websocket origins. Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Metrics records connection metrics. Optional.
	Metrics *middleware.Metrics

	// Gatherer, when set, is exposed at MetricsPath.
	Gatherer prometheus.Gatherer

	// MetricsPath is the Prometheus endpoint path (default "/metrics").
	MetricsPath string

	// Logger is the hub logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
// SECURITY: CheckOrigin enforces same-origin by default.
func DefaultConfig() Config {
	return Config{
		Address:         ":7070",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBuffer:      64,
		MaxMessageSize:  1 << 20,
		ShutdownTimeout: 10 * time.Second,
		CheckOrigin:     SameOriginCheck,
		MetricsPath:     "/metrics",
	}
}

// withDefaults fills in defaults for any unset fields.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.ReadTimeout {
		c.PingInterval = c.ReadTimeout * 9 / 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaults.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.MetricsPath == "" {
		c.MetricsPath = defaults.MetricsPath
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// Requests without an Origin header (CLI clients, curl) are allowed.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}

// AllowOrigins returns a CheckOrigin func accepting same-origin requests
// and the listed origins.
func AllowOrigins(origins ...string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		if allowed[r.Header.Get("Origin")] {
			return true
		}
		return SameOriginCheck(r)
	}
}
