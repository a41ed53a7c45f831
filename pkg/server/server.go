package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hub serves a Registry over HTTP and WebSocket.
type Hub struct {
	registry *Registry
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	mu    sync.Mutex
	conns map[string]*conn

	httpServer *http.Server
}

// New creates a hub for reg.
func New(reg *Registry, config Config) *Hub {
	config = config.withDefaults()

	h := &Hub{
		registry: reg,
		config:   config,
		logger:   config.Logger.With("component", "hub"),
		conns:    make(map[string]*conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	h.router = h.routes()
	return h
}

func (h *Hub) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.handleHealth)
	if h.config.Gatherer != nil {
		r.Handle(h.config.MetricsPath, promhttp.HandlerFor(h.config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/stores", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{name}", h.handleGet)
		r.Put("/{name}", h.handlePut)
		r.Get("/{name}/ws", h.handleWebSocket)
	})
	return r
}

// requestLogger logs one line per request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", chimw.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Handler returns the hub's HTTP handler.
func (h *Hub) Handler() http.Handler {
	return h.router
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Registry returns the hub's registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connections returns the number of open websocket connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) track(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.config.Metrics.RecordConnectionOpen()
}

func (h *Hub) untrack(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()
	if ok {
		h.config.Metrics.RecordConnectionClose()
	}
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (h *Hub) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.config.Address)
	if err != nil {
		return err
	}
	return h.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	h.mu.Lock()
	h.httpServer = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := h.httpServer
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("hub starting", "address", ln.Addr().String(), "stores", h.registry.Len())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		h.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.config.ShutdownTimeout)
	defer cancel()
	return h.Shutdown(shutdownCtx)
}

// Shutdown closes every websocket connection and stops the HTTP server.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	srv := h.httpServer
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			h.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	h.logger.Info("hub shutdown complete")
	return nil
}
