package obsfabric

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
)

func TestEventSequenceStrictlyIncreasing(t *testing.T) {
	log := NewLog()
	var last uint64
	for i := 0; i < 100; i++ {
		evt := log.Append(toolhub.Event{Type: toolhub.EventToolCalled})
		require.Greater(t, evt.Seq, last)
		last = evt.Seq
	}
}

func TestListenerPanicDoesNotStopOthers(t *testing.T) {
	log := NewLog()
	var mu sync.Mutex
	delivered := 0
	log.On("", func(toolhub.Event) { panic("boom") })
	log.On("", func(toolhub.Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	log.Append(toolhub.Event{Type: toolhub.EventToolResult})
	require.Equal(t, 1, delivered)
}

func TestTracerBuildsSpanTreeInStartOrder(t *testing.T) {
	tr := NewTracer()
	id1 := tr.StartSpan(StartSpanOpts{Name: "root", TraceID: "t1"})
	id2 := tr.StartSpan(StartSpanOpts{Name: "child", TraceID: "t1", ParentID: id1})
	tr.EndSpan(id1, SpanStatusOK)
	tr.EndSpan(id2, SpanStatusOK)

	spans := tr.GetTrace("t1")
	require.Len(t, spans, 2)
	require.Equal(t, "root", spans[0].Name)
	require.Equal(t, "child", spans[1].Name)
}

func TestMetricsCounterAndHistogram(t *testing.T) {
	m := NewMetrics()
	m.IncCounter("tool_invocations_total", map[string]string{"tool": "x", "ok": "true"})
	m.IncCounter("tool_invocations_total", map[string]string{"tool": "x", "ok": "true"})
	require.Equal(t, 2.0, m.Counter("tool_invocations_total", map[string]string{"tool": "x", "ok": "true"}))

	m.ObserveLatency("x", 42)
	require.Contains(t, m.ExportPrometheus(), "tool_latency_ms")
}
