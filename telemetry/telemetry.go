// Package telemetry defines the Hub's pluggable logging, metrics, and
// tracing interfaces. The Hub and the PTC Runtime accept a Logger and a
// Tracer as options, defaulting to a no-op implementation so the Hub never
// requires an observability backend to function; a production deployment
// wires in the OTEL/clue-backed implementations in otel.go. No component
// takes a Metrics.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger emits structured log lines keyed by alternating (key, value) pairs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics records counters, timers, and gauges, each optionally dimensioned
// by alternating (tagKey, tagValue) string pairs.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, d time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Span is a single unit of tracing work, started by a Tracer.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Tracer starts and retrieves Spans, bridging to whatever distributed
// tracing backend is configured.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}
