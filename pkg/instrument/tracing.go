package instrument

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/urlq-dev/urlq/pkg/adapter"
	"github.com/urlq-dev/urlq/pkg/urlq"
)

const defaultTracerName = "urlq"

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "urlq").
	TracerName string

	// IncludeKeys records the changed key names on spans. Key names are
	// usually harmless; disable if yours are not.
	IncludeKeys bool
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithIncludeKeys enables or disables recording key names on spans.
func WithIncludeKeys(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeKeys = include
	}
}

// Tracing is a urlq.Observer that emits one span per committed flush,
// parse failure, and reconciled external navigation.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before binding engines:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type Tracing struct {
	tracer      trace.Tracer
	includeKeys bool
}

var _ urlq.Observer = (*Tracing)(nil)

// NewTracing creates the OpenTelemetry observer.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{
		TracerName:  defaultTracerName,
		IncludeKeys: true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Tracing{
		tracer:      otel.Tracer(config.TracerName),
		includeKeys: config.IncludeKeys,
	}
}

func (t *Tracing) FlushCommitted(mode adapter.HistoryMode, keys []string, elapsed time.Duration) {
	// The commit already happened; reconstruct the span interval from the
	// reported duration.
	end := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("urlq.mode", mode.String()),
		attribute.Int("urlq.key_count", len(keys)),
	}
	if t.includeKeys {
		attrs = append(attrs, attribute.StringSlice("urlq.keys", keys))
	}
	_, span := t.tracer.Start(context.Background(), "urlq.flush",
		trace.WithTimestamp(end.Add(-elapsed)),
		trace.WithAttributes(attrs...))
	span.End(trace.WithTimestamp(end))
}

func (t *Tracing) ParseFailure(key string, err error) {
	_, span := t.tracer.Start(context.Background(), "urlq.parse_failure",
		trace.WithAttributes(attribute.String("urlq.key", key)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func (t *Tracing) ExternalNavigation(keys []string) {
	attrs := []attribute.KeyValue{attribute.Int("urlq.key_count", len(keys))}
	if t.includeKeys {
		attrs = append(attrs, attribute.StringSlice("urlq.keys", keys))
	}
	_, span := t.tracer.Start(context.Background(), "urlq.external_navigation",
		trace.WithAttributes(attrs...))
	span.End()
}
