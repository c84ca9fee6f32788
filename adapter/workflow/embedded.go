package workflow

import (
	"context"
	"sync"
	"time"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

// Definition is the engine-defined workflow document Directory Discovery's
// workflow loader parses from workflow.json (§4.4): a required Nodes array
// plus an ID that becomes the ToolSpec's ResourceID. The node graph itself
// is interpreted by the embedded Engine (Temporal activities, or the
// in-memory engine's registered WorkflowFunc), never by this adapter.
type Definition struct {
	ID    string
	Name  string
	Nodes []map[string]any
}

// Importer is implemented by an Engine that needs an explicit
// import/update step before a Definition can be started (Temporal's
// workflow-type registration is static, so TemporalEngine implements this
// as a no-op; a hypothetical engine with a workflow registry API would do
// real work here). Embedded calls Import at most once per tool name,
// caching the returned internal id, comparing by Definition.ID and falling
// back to Definition.Name the way Temporal's own update-or-create APIs do.
type Importer interface {
	Import(ctx context.Context, def Definition) (internalID string, err error)
}

// Embedded implements the workflow adapter's embedded flavor (§4.3, §5): it
// drives an in-process Engine (Temporal-backed in production, in-memory for
// tests), lazily starting it on first invoke behind a single shared startup
// promise so concurrent first-invokes do not race the engine's bring-up.
type Embedded struct {
	engine Engine

	startOnce sync.Once
	startErr  error

	mu          sync.Mutex
	internalIDs map[string]string
}

// NewEmbedded returns an Embedded adapter driving engine.
func NewEmbedded(engine Engine) *Embedded {
	return &Embedded{engine: engine, internalIDs: make(map[string]string)}
}

// Kind implements adapter.Adapter.
func (e *Embedded) Kind() toolhub.ToolKind { return toolhub.ToolKindWorkflow }

// ListTools implements adapter.Adapter; the embedded workflow catalog comes
// from Directory Discovery, not a live query against the engine.
func (e *Embedded) ListTools(context.Context) ([]toolhub.ToolSpec, error) { return nil, nil }

// Stop tears down the underlying engine if it supports explicit teardown
// (TemporalEngine does, closing its worker and client; the in-memory engine
// used in tests has nothing to release).
func (e *Embedded) Stop() error {
	if stopper, ok := e.engine.(interface{ Stop() error }); ok {
		return stopper.Stop()
	}
	return nil
}

// ensureStarted runs engine start-up exactly once across all concurrent
// first-invokes, matching the donor's worker-bundle startOnce guard.
func (e *Embedded) ensureStarted(ctx context.Context) error {
	if starter, ok := e.engine.(interface{ Start(context.Context) error }); ok {
		e.startOnce.Do(func() { e.startErr = starter.Start(ctx) })
		return e.startErr
	}
	return nil
}

func (e *Embedded) resolveInternalID(ctx context.Context, def Definition) (string, error) {
	e.mu.Lock()
	if id, ok := e.internalIDs[def.Name]; ok {
		e.mu.Unlock()
		return id, nil
	}
	e.mu.Unlock()

	id := def.ID
	if id == "" {
		id = def.Name
	}
	if importer, ok := e.engine.(Importer); ok {
		imported, err := importer.Import(ctx, def)
		if err != nil {
			return "", err
		}
		id = imported
	}

	e.mu.Lock()
	e.internalIDs[def.Name] = id
	e.mu.Unlock()
	return id, nil
}

// Invoke lazily starts the engine, resolves/imports spec's workflow
// definition, and executes it in-process, waiting for its result.
func (e *Embedded) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	if err := e.ensureStarted(ctx); err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("workflow: engine start failed", err).WithKind(string(toolhub.ErrorUpstream))
	}

	def, ok := spec.Impl.(Definition)
	if !ok {
		if p, ok := spec.Impl.(*Definition); ok {
			def = *p
		} else {
			return adapter.Outcome{}, toolerrors.Errorf("workflow: %s has no workflow definition", spec.Name).WithKind(string(toolhub.ErrorUpstream))
		}
	}
	if def.Name == "" {
		def.Name = string(spec.Name)
	}

	internalID, err := e.resolveInternalID(ctx, def)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("workflow: import failed", err).WithKind(string(toolhub.ErrorUpstream))
	}

	var timeout time.Duration
	if execCtx != nil && execCtx.Budget != nil && execCtx.Budget.TimeoutMs != nil {
		timeout = time.Duration(*execCtx.Budget.TimeoutMs) * time.Millisecond
	}

	key := IdempotencyKeyFrom(ctx)
	if key == "" {
		key = defaultIdempotencyKey(execCtx, spec)
	}

	handle, err := e.engine.StartWorkflow(ctx, StartRequest{
		ID:       key,
		Workflow: internalID,
		Input:    args,
		Timeout:  timeout,
	})
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("workflow: start failed", err).WithKind(string(toolhub.ErrorUpstream))
	}

	var result any
	if err := handle.Wait(ctx, &result); err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("workflow: execution failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	return adapter.Outcome{Result: result, Raw: result}, nil
}
