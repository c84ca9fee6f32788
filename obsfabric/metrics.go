package obsfabric

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// latencyBuckets are the fixed histogram bucket upper bounds, in
// milliseconds, for tool_latency_ms.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Metrics records named, tag-dimensioned counters and latency histograms.
// The PTC Runtime records tool_invocations_total{tool,ok},
// tool_retries_total{tool}, policy_denied_total{tool,reason}, and the
// tool_latency_ms{tool} histogram into it. No component records a
// jobs_total counter: the Async Job Manager does not hold a Metrics.
type Metrics struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram() *histogram {
	return &histogram{buckets: latencyBuckets, counts: make([]uint64, len(latencyBuckets)+1)}
}

func (h *histogram) observe(v float64) {
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			return
		}
	}
	h.counts[len(h.counts)-1]++
}

// NewMetrics returns an empty Metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]float64), histograms: make(map[string]*histogram)}
}

func labelKey(name string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, ",%s=%s", k, tags[k])
	}
	return b.String()
}

// IncCounter increments the named counter dimensioned by tags.
func (m *Metrics) IncCounter(name string, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[labelKey(name, tags)]++
}

// ObserveLatency records v (in milliseconds) into the tool_latency_ms
// histogram for the given tool.
func (m *Metrics) ObserveLatency(tool string, ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := labelKey("tool_latency_ms", map[string]string{"tool": tool})
	h, ok := m.histograms[key]
	if !ok {
		h = newHistogram()
		m.histograms[key] = h
	}
	h.observe(ms)
}

// Counter returns the current value of the named/tagged counter, for tests.
func (m *Metrics) Counter(name string, tags map[string]string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[labelKey(name, tags)]
}

// ExportPrometheus renders every counter and histogram in Prometheus text
// exposition format. Optional per §4.10.
func (m *Metrics) ExportPrometheus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	keys := make([]string, 0, len(m.counters))
	for k := range m.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %g\n", sanitizeMetricKey(k), m.counters[k])
	}
	hkeys := make([]string, 0, len(m.histograms))
	for k := range m.histograms {
		hkeys = append(hkeys, k)
	}
	sort.Strings(hkeys)
	for _, k := range hkeys {
		h := m.histograms[k]
		fmt.Fprintf(&b, "%s_sum %g\n%s_count %d\n", sanitizeMetricKey(k), h.sum, sanitizeMetricKey(k), h.count)
	}
	return b.String()
}

func sanitizeMetricKey(k string) string {
	return strings.NewReplacer(",", "_", "=", "_").Replace(k)
}
