package workflow

import (
	"context"
	"fmt"
	"sync"

	"toolhub.dev/hub/toolerrors"
)

// WorkflowFunc is a registered workflow body for the in-memory engine.
type WorkflowFunc func(ctx context.Context, input any) (any, error)

// InMemEngine runs registered workflows synchronously in a goroutine,
// suitable for tests and local development; it provides none of Temporal's
// durability or replay guarantees, matching the donor's own in-memory engine
// disclaimer (runtime/agent/engine/inmem).
type InMemEngine struct {
	mu        sync.Mutex
	workflows map[string]WorkflowFunc
}

// NewInMemEngine returns an empty in-memory Engine.
func NewInMemEngine() *InMemEngine {
	return &InMemEngine{workflows: make(map[string]WorkflowFunc)}
}

// Register binds name to fn. Re-registering the same name overwrites it,
// convenient for test setup.
func (e *InMemEngine) Register(name string, fn WorkflowFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[name] = fn
}

// StartWorkflow implements Engine.
func (e *InMemEngine) StartWorkflow(ctx context.Context, req StartRequest) (Handle, error) {
	e.mu.Lock()
	fn, ok := e.workflows[req.Workflow]
	e.mu.Unlock()
	if !ok {
		return nil, toolerrors.Errorf("workflow %q is not registered", req.Workflow).WithKind("TOOL_NOT_FOUND")
	}

	h := &inmemHandle{id: req.ID, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.err = fn(ctx, req.Input)
	}()
	return h, nil
}

type inmemHandle struct {
	id     string
	done   chan struct{}
	result any
	err    error
}

func (h *inmemHandle) ID() string { return h.id }

func (h *inmemHandle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
	}
	if h.err != nil {
		return h.err
	}
	return assign(result, h.result)
}

func assign(dest, value any) error {
	if dest == nil {
		return nil
	}
	switch d := dest.(type) {
	case *any:
		*d = value
		return nil
	default:
		return fmt.Errorf("workflow: unsupported result destination %T", dest)
	}
}
