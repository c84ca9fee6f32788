// Package obsfabric is the Hub's own Event Log / Metrics / Tracing fabric
// (§4.10): an append-only event buffer with a strictly monotonic sequence
// number, counters/histograms, and a span tree. It is distinct from the
// ambient telemetry package (package telemetry): the fabric is
// domain-mandated, always present, in-process state; telemetry is how a
// deployment forwards the fabric's data to an OTEL backend. Grounded on the
// donor's runtime/registry/observability.go Observability wrapper shape.
package obsfabric

import (
	"sync"
	"time"

	"toolhub.dev/hub"
)

// Listener receives a copy of every appended Event. A listener that panics
// or otherwise misbehaves must not stop delivery to other listeners; the Log
// recovers around each call.
type Listener func(toolhub.Event)

// Log is an append-only, monotonically sequenced event buffer.
type Log struct {
	mu        sync.RWMutex
	seq       uint64
	events    []toolhub.Event
	listeners map[toolhub.EventType][]Listener
	all       []Listener
}

// NewLog returns an empty Log.
func NewLog() *Log {
	return &Log{listeners: make(map[toolhub.EventType][]Listener)}
}

// On registers listener for events of type t. Pass an empty EventType to
// receive every event.
func (l *Log) On(t toolhub.EventType, listener Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t == "" {
		l.all = append(l.all, listener)
		return
	}
	l.listeners[t] = append(l.listeners[t], listener)
}

// Append assigns the next monotonic sequence number and timestamp (if unset)
// to evt, stores it, and fans it out to subscribers.
func (l *Log) Append(evt toolhub.Event) toolhub.Event {
	l.mu.Lock()
	l.seq++
	evt.Seq = l.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	l.events = append(l.events, evt)
	typeListeners := append([]Listener(nil), l.listeners[evt.Type]...)
	allListeners := append([]Listener(nil), l.all...)
	l.mu.Unlock()

	for _, ln := range typeListeners {
		dispatch(ln, evt)
	}
	for _, ln := range allListeners {
		dispatch(ln, evt)
	}
	return evt
}

func dispatch(ln Listener, evt toolhub.Event) {
	defer func() { _ = recover() }()
	ln(evt)
}

// GetAll returns every event appended so far, for testing.
func (l *Log) GetAll() []toolhub.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]toolhub.Event, len(l.events))
	copy(out, l.events)
	return out
}
