package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/vstore/pkg/store"
)

// Default tracer name for vstore.
const defaultTracerName = "vstore"

// OTelConfig configures the OpenTelemetry observer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vstore").
	TracerName string

	// Tracer overrides the tracer resolved from the global provider.
	Tracer trace.Tracer

	// TraceLifecycle records activation and deactivation spans.
	// Enabled by default.
	TraceLifecycle bool

	// Filter determines which stores to trace.
	// Return true to trace the store, false to skip.
	// If nil, all stores are traced.
	Filter func(name string) bool

	// AttributeExtractor adds custom attributes for a store.
	AttributeExtractor func(name string) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry observer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracer sets the tracer directly, bypassing the global provider.
func WithTracer(tracer trace.Tracer) OTelOption {
	return func(c *OTelConfig) {
		c.Tracer = tracer
	}
}

// WithTraceLifecycle enables/disables activation and deactivation spans.
func WithTraceLifecycle(enabled bool) OTelOption {
	return func(c *OTelConfig) {
		c.TraceLifecycle = enabled
	}
}

// WithStoreFilter sets a filter function for stores.
func WithStoreFilter(filter func(name string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(name string) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:     defaultTracerName,
		TraceLifecycle: true,
	}
}

// Tracing is a store.Observer that records OpenTelemetry spans.
type Tracing struct {
	config OTelConfig
	tracer trace.Tracer
}

var _ store.Observer = (*Tracing)(nil)

// OpenTelemetry creates an observer that traces store activity.
//
// The observer:
//   - Creates a "vstore.notify" span for each notification pass, back-dated
//     to when the pass started
//   - Creates "vstore.activate" and "vstore.deactivate" spans
//   - Records subscriber panics as error spans
//
// Example:
//
//	obs := middleware.OpenTelemetry(middleware.WithTracerName("my-app"))
//	s := store.New(0, store.WithName("counter"), store.WithObserver(obs))
//
// The tracer uses the global OpenTelemetry tracer provider unless WithTracer
// is given. Configure it in your main() before creating stores:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) *Tracing {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Tracing{config: config, tracer: tracer}
}

func (t *Tracing) traced(name string) bool {
	return t.config.Filter == nil || t.config.Filter(name)
}

func (t *Tracing) attrs(name string, extra ...attribute.KeyValue) []attribute.KeyValue {
	attrs := append([]attribute.KeyValue{attribute.String("vstore.store", name)}, extra...)
	if t.config.AttributeExtractor != nil {
		attrs = append(attrs, t.config.AttributeExtractor(name)...)
	}
	return attrs
}

func (t *Tracing) instant(spanName, name string) {
	if !t.config.TraceLifecycle || !t.traced(name) {
		return
	}
	now := time.Now()
	_, span := t.tracer.Start(context.Background(), spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(t.attrs(name)...),
		trace.WithTimestamp(now),
	)
	span.End(trace.WithTimestamp(now))
}

func (t *Tracing) Subscribed(name string, listeners int)   {}
func (t *Tracing) Unsubscribed(name string, listeners int) {}

func (t *Tracing) Activated(name string) {
	t.instant("vstore.activate", name)
}

func (t *Tracing) Deactivated(name string) {
	t.instant("vstore.deactivate", name)
}

func (t *Tracing) Notified(name string, listeners int, elapsed time.Duration) {
	if !t.traced(name) {
		return
	}
	end := time.Now()
	_, span := t.tracer.Start(context.Background(), "vstore.notify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(t.attrs(name, attribute.Int("vstore.listeners", listeners))...),
		trace.WithTimestamp(end.Add(-elapsed)),
	)
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(end))
}

func (t *Tracing) ListenerPanicked(name string, recovered any) {
	if !t.traced(name) {
		return
	}
	msg := fmt.Sprint(recovered)
	_, span := t.tracer.Start(context.Background(), "vstore.listener_panic",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(t.attrs(name)...),
	)
	if err, ok := recovered.(error); ok {
		span.RecordError(err)
	} else {
		span.RecordError(fmt.Errorf("panic: %s", msg))
	}
	span.SetStatus(codes.Error, msg)
	span.End()
}
