package obsfabric

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SpanStatus is the terminal status of a span.
type SpanStatus string

// SpanStatus values.
const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanEvent is a timestamped annotation added to a span mid-flight.
type SpanEvent struct {
	Name       string
	Attributes map[string]any
	At         time.Time
}

// Span is one node in a trace's span tree.
type Span struct {
	SpanID     string
	TraceID    string
	ParentID   string
	Name       string
	Attributes map[string]any
	Events     []SpanEvent
	StartedAt  time.Time
	EndedAt    time.Time
	Status     SpanStatus
}

// StartSpanOpts configures a new span.
type StartSpanOpts struct {
	Name       string
	TraceID    string
	ParentID   string
	Attributes map[string]any
}

// Tracer maintains an in-process span tree per trace ID (§4.10).
type Tracer struct {
	mu      sync.Mutex
	spans   map[string]*Span
	byTrace map[string][]string
}

// NewTracer returns an empty Tracer.
func NewTracer() *Tracer {
	return &Tracer{spans: make(map[string]*Span), byTrace: make(map[string][]string)}
}

// StartSpan begins a new span, generating a TraceID if none was given, and
// returns its SpanID.
func (t *Tracer) StartSpan(opts StartSpanOpts) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	traceID := opts.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	span := &Span{
		SpanID:     uuid.NewString(),
		TraceID:    traceID,
		ParentID:   opts.ParentID,
		Name:       opts.Name,
		Attributes: cloneAttrs(opts.Attributes),
		StartedAt:  time.Now(),
	}
	t.spans[span.SpanID] = span
	t.byTrace[traceID] = append(t.byTrace[traceID], span.SpanID)
	return span.SpanID
}

// AddEvent appends a timestamped annotation to spanID.
func (t *Tracer) AddEvent(spanID, name string, attrs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if span, ok := t.spans[spanID]; ok {
		span.Events = append(span.Events, SpanEvent{Name: name, Attributes: cloneAttrs(attrs), At: time.Now()})
	}
}

// SetAttributes merges attrs into spanID's attribute set.
func (t *Tracer) SetAttributes(spanID string, attrs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[spanID]
	if !ok {
		return
	}
	if span.Attributes == nil {
		span.Attributes = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		span.Attributes[k] = v
	}
}

// EndSpan marks spanID as finished with the given status.
func (t *Tracer) EndSpan(spanID string, status SpanStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if span, ok := t.spans[spanID]; ok {
		span.EndedAt = time.Now()
		span.Status = status
	}
}

// GetTrace returns every span belonging to traceID, ordered by start time.
func (t *Tracer) GetTrace(traceID string) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.byTrace[traceID]
	out := make([]Span, 0, len(ids))
	for _, id := range ids {
		if span, ok := t.spans[id]; ok {
			out = append(out, *span)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
