package workflow

import (
	"context"
	"sync"
	"time"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/jobs"
	"toolhub.dev/hub/toolerrors"
)

// idempotencyCacheTTL is how long a successful Remote invocation's result is
// served to a later call carrying the same idempotency key (§4.3).
const idempotencyCacheTTL = time.Hour

// idempotencyKeyCtxKey is the context key the PTC Runtime uses to thread an
// intent's idempotency key down to the Remote adapter without widening the
// common adapter.Adapter interface every other kind also implements.
type idempotencyKeyCtxKey struct{}

// WithIdempotencyKey attaches key to ctx for a Remote adapter invocation to
// read back with IdempotencyKeyFrom.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtxKey{}, key)
}

// IdempotencyKeyFrom returns the key attached by WithIdempotencyKey, or ""
// if none was set.
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtxKey{}).(string)
	return key
}

// RemoteResponse is what a RemoteCaller reports back for one invocation.
// Async is true when the back-end queued the work instead of running it
// synchronously; JobID and QueueNumber are then populated and Result is nil.
type RemoteResponse struct {
	Async       bool
	Result      any
	JobID       string
	QueueNumber int
}

// RemoteCaller is implemented by the wire transport (HTTP webhook or
// workflow-engine API client) a Remote adapter delegates to.
type RemoteCaller interface {
	Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any) (RemoteResponse, error)
}

type cachedResult struct {
	outcome  adapter.Outcome
	storedAt time.Time
}

// Remote implements the workflow adapter's remote flavor (§4.3): it calls
// out to an external workflow-engine API or HTTP webhook through a
// RemoteCaller, deduplicating concurrent identical calls by idempotency key
// for up to an hour, and registering async responses with the Job Manager.
type Remote struct {
	caller RemoteCaller
	jobMgr *jobs.Manager

	mu    sync.Mutex
	cache map[string]cachedResult
}

// NewRemote returns a Remote adapter calling out through caller. jobMgr may
// be nil if async workflows are never expected from this back-end.
func NewRemote(caller RemoteCaller, jobMgr *jobs.Manager) *Remote {
	return &Remote{caller: caller, jobMgr: jobMgr, cache: make(map[string]cachedResult)}
}

// Kind implements adapter.Adapter.
func (r *Remote) Kind() toolhub.ToolKind { return toolhub.ToolKindWorkflow }

// ListTools implements adapter.Adapter; the remote workflow catalog is
// populated through Directory Discovery's workflow loader, not queried live.
func (r *Remote) ListTools(context.Context) ([]toolhub.ToolSpec, error) { return nil, nil }

// Invoke forwards to the RemoteCaller, deduping on the idempotency key the
// PTC Runtime attached to ctx (default requestId:taskId:toolName). A second
// concurrent or later call with the same key observes the first call's
// cached result only if the first already completed; there is no
// pipeline-level lock serializing concurrent first calls (§5).
func (r *Remote) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	key := IdempotencyKeyFrom(ctx)
	if key == "" {
		key = defaultIdempotencyKey(execCtx, spec)
	}

	if cached, ok := r.lookupCache(key); ok {
		return cached, nil
	}

	resp, err := r.caller.Invoke(ctx, spec, args)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("workflow: remote invocation failed", err).WithKind(string(toolhub.ErrorUpstream))
	}

	if resp.Async {
		var jobID string
		if r.jobMgr != nil {
			job := r.jobMgr.Submit(string(spec.Name), execCtx.RequestID, execCtx.TaskID, map[string]any{"queueNumber": resp.QueueNumber})
			jobID = job.JobID
		} else {
			jobID = resp.JobID
		}
		return adapter.Outcome{Result: map[string]any{
			"jobId":       jobID,
			"status":      string(toolhub.JobStatusQueued),
			"queueNumber": resp.QueueNumber,
		}}, nil
	}

	outcome := adapter.Outcome{Result: resp.Result, Raw: resp.Result}
	r.storeCache(key, outcome)
	return outcome, nil
}

func (r *Remote) lookupCache(key string) (adapter.Outcome, bool) {
	if key == "" {
		return adapter.Outcome{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || time.Since(entry.storedAt) > idempotencyCacheTTL {
		delete(r.cache, key)
		return adapter.Outcome{}, false
	}
	return entry.outcome, true
}

func (r *Remote) storeCache(key string, outcome adapter.Outcome) {
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cachedResult{outcome: outcome, storedAt: time.Now()}
}

// defaultIdempotencyKey builds the default "requestId:taskId:toolName" key
// (§3 glossary) when the caller's intent did not supply one explicitly.
func defaultIdempotencyKey(execCtx *toolhub.ExecContext, spec *toolhub.ToolSpec) string {
	if execCtx == nil {
		return string(spec.Name)
	}
	return execCtx.RequestID + ":" + execCtx.TaskID + ":" + string(spec.Name)
}
