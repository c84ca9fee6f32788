package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
)

func TestClueLoggerSatisfiesLoggerWithoutPanicking(t *testing.T) {
	var l Logger = NewClueLogger()
	ctx := context.Background()
	l.Debug(ctx, "debug", "k", "v")
	l.Info(ctx, "info", "k", 1)
	l.Warn(ctx, "warn")
	l.Error(ctx, "error", "k", true)
}

func TestOtelMetricsSatisfiesMetricsWithoutPanicking(t *testing.T) {
	var m Metrics = NewOtelMetrics()
	m.IncCounter("demo_total", 1, "tool", "demo/echo")
	m.RecordTimer("demo_latency_ms", 5*time.Millisecond, "tool", "demo/echo")
	m.RecordGauge("demo_gauge", 3.5, "tool", "demo/echo")
}

func TestOtelTracerStartAndEndSpan(t *testing.T) {
	var tr Tracer = NewOtelTracer()
	ctx, span := tr.Start(context.Background(), "demo-span")
	span.AddEvent("step", "n", 1)
	span.SetStatus(codes.Ok, "")
	span.End()

	fromCtx := tr.Span(ctx)
	if fromCtx == nil {
		t.Fatal("Span(ctx) returned nil")
	}
}
