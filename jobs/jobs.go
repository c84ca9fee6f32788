// Package jobs implements the Async Job Manager (§4.5): the
// queued->running->{completed,failed,canceled} state machine, its TTL
// eviction sweep, and event fan-out. The sweep-loop shape is grounded on the
// donor's runtime/registry/manager.go ticker loop.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"toolhub.dev/hub"
	"toolhub.dev/hub/obsfabric"
)

// Store is the persistence interface behind the Manager. The default is an
// in-memory store (memory.go); a Redis-backed implementation
// (redisstore.Store) may be substituted for multi-process deployments.
type Store interface {
	Put(job toolhub.Job)
	Get(jobID string) (toolhub.Job, bool)
	List() []toolhub.Job
	Delete(jobID string)
}

// Filter narrows List results by toolName, status, and/or requestID.
type Filter struct {
	ToolName  string
	Status    toolhub.JobStatus
	RequestID string
}

// Manager implements the job state machine and TTL sweep.
type Manager struct {
	store Store
	log   *obsfabric.Log
	ttl   time.Duration

	mu       sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Options configures a Manager.
type Options struct {
	Store Store
	Log   *obsfabric.Log
	// TTL is how long a terminal job survives before the sweeper evicts it.
	// Defaults to 60s.
	TTL time.Duration
	// SweepInterval is how often the sweeper checks for expired jobs.
	// Defaults to TTL/4, floored at 1s.
	SweepInterval time.Duration
}

// New builds a Manager and starts its background sweeper. Call Dispose to
// stop it.
func New(opts Options) *Manager {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	log := opts.Log
	if log == nil {
		log = obsfabric.NewLog()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	interval := opts.SweepInterval
	if interval <= 0 {
		interval = ttl / 4
		if interval < time.Second {
			interval = time.Second
		}
	}
	m := &Manager{store: store, log: log, ttl: ttl, stopCh: make(chan struct{})}
	go m.sweepLoop(interval)
	return m
}

func (m *Manager) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	for _, job := range m.store.List() {
		if job.Status.Terminal() && now.Sub(job.UpdatedAt) >= m.ttl {
			m.store.Delete(job.JobID)
		}
	}
}

// Dispose stops the sweeper. Safe to call more than once.
func (m *Manager) Dispose() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Submit creates a new job in the queued state and emits JOB_SUBMITTED.
func (m *Manager) Submit(toolName, requestID, taskID string, metadata map[string]any) toolhub.Job {
	now := time.Now()
	job := toolhub.Job{
		JobID:     uuid.NewString(),
		ToolName:  toolhub.Name(toolName),
		RequestID: requestID,
		TaskID:    taskID,
		Status:    toolhub.JobStatusQueued,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.store.Put(job)
	m.log.Append(toolhub.Event{
		Type: toolhub.EventJobSubmitted, RequestID: requestID, TaskID: taskID, ToolName: job.ToolName,
		Fields: map[string]any{"jobId": job.JobID},
	})
	return job
}

// transition applies next to jobID if the current status allows it,
// returning false if jobID is unknown or the edge is disallowed.
func (m *Manager) transition(jobID string, next toolhub.JobStatus, mutate func(*toolhub.Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.store.Get(jobID)
	if !ok || !job.Status.CanTransitionTo(next) {
		return false
	}
	job.Status = next
	job.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(&job)
	}
	m.store.Put(job)
	return true
}

// MarkRunning transitions jobID from queued to running.
func (m *Manager) MarkRunning(jobID string) bool {
	return m.transition(jobID, toolhub.JobStatusRunning, nil)
}

// Complete transitions jobID to completed with result and emits
// JOB_COMPLETED.
func (m *Manager) Complete(jobID string, result any) bool {
	var job toolhub.Job
	ok := m.transition(jobID, toolhub.JobStatusCompleted, func(j *toolhub.Job) { j.Result = result; job = *j })
	if ok {
		m.log.Append(toolhub.Event{
			Type: toolhub.EventJobCompleted, RequestID: job.RequestID, TaskID: job.TaskID, ToolName: job.ToolName,
			Fields: map[string]any{"jobId": job.JobID},
		})
	}
	return ok
}

// Fail transitions jobID to failed with err and emits JOB_FAILED.
func (m *Manager) Fail(jobID string, toolErr *toolhub.ResultError) bool {
	var job toolhub.Job
	ok := m.transition(jobID, toolhub.JobStatusFailed, func(j *toolhub.Job) { j.Error = toolErr; job = *j })
	if ok {
		m.log.Append(toolhub.Event{
			Type: toolhub.EventJobFailed, RequestID: job.RequestID, TaskID: job.TaskID, ToolName: job.ToolName,
			Fields: map[string]any{"jobId": job.JobID, "error": toolErr},
		})
	}
	return ok
}

// Cancel transitions jobID to canceled from either queued or running.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	job, ok := m.store.Get(jobID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	return m.transition(jobID, toolhub.JobStatusCanceled, nil) || job.Status == toolhub.JobStatusCanceled
}

// GetJob returns jobID's current state.
func (m *Manager) GetJob(jobID string) (toolhub.Job, bool) {
	return m.store.Get(jobID)
}

// GetStatus returns jobID's status, or "" if unknown.
func (m *Manager) GetStatus(jobID string) toolhub.JobStatus {
	job, ok := m.store.Get(jobID)
	if !ok {
		return ""
	}
	return job.Status
}

// GetResult returns jobID's result only if it has completed; undefined
// (ok=false) for any other status, including unknown ids.
func (m *Manager) GetResult(jobID string) (any, bool) {
	job, ok := m.store.Get(jobID)
	if !ok || job.Status != toolhub.JobStatusCompleted {
		return nil, false
	}
	return job.Result, true
}

// List returns every job matching filter (zero-valued fields are
// unconstrained).
func (m *Manager) List(filter Filter) []toolhub.Job {
	var out []toolhub.Job
	for _, job := range m.store.List() {
		if filter.ToolName != "" && string(job.ToolName) != filter.ToolName {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.RequestID != "" && job.RequestID != filter.RequestID {
			continue
		}
		out = append(out, job)
	}
	return out
}
