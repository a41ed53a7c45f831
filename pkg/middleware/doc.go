// Package middleware provides production-grade observers for vstore stores.
//
// This package includes:
//   - Prometheus metrics for subscriptions, activations and notifications
//   - OpenTelemetry spans for notification passes and lifecycle changes
//   - Structured logging through log/slog
//
// Every observer implements store.Observer and is attached with
// store.WithObserver. Use Chain to attach several at once:
//
//	obs := middleware.Chain(
//	    middleware.Logger(slog.Default()),
//	    middleware.Prometheus(middleware.WithNamespace("myapp")),
//	    middleware.OpenTelemetry(),
//	)
//	counter := store.New(0, store.WithName("counter"), store.WithObserver(obs))
//
// # Prometheus Metrics
//
// The Prometheus observer labels every store metric with the store name:
//   - vstore_subscribers: Current number of subscribers
//   - vstore_activations_total: Idle to active transitions
//   - vstore_notify_duration_seconds: Notification pass duration histogram
//
// Then expose metrics:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # OpenTelemetry
//
// Observers are called after the fact, so notification spans are back-dated
// with trace.WithTimestamp to cover the pass they describe.
package middleware
