// Package workflow implements the workflow tools adapter (§4.3, §5), in two
// flavors: Remote, which calls an external workflow-engine HTTP API, and
// Embedded, which drives an in-process Engine (Temporal-backed in
// production, in-memory for tests). The Engine abstraction is grounded on
// the donor's runtime/agent/engine package, trimmed to the subset a tool
// invocation needs: start a workflow by name and wait for (or detach from)
// its result.
package workflow

import (
	"context"
	"time"
)

// Engine abstracts workflow start/wait so Embedded can run against Temporal
// in production and an in-memory engine in tests, the way the donor's
// engine.Engine lets generated agent code target either back-end
// unmodified.
type Engine interface {
	// StartWorkflow launches the named workflow with input and returns a
	// handle for waiting on its result. Name is looked up by workflow ID
	// first and falls back to the workflow type name, mirroring Temporal's
	// own update-by-id-or-name flexibility.
	StartWorkflow(ctx context.Context, req StartRequest) (Handle, error)
}

// StartRequest describes a workflow invocation.
type StartRequest struct {
	ID        string
	Workflow  string
	TaskQueue string
	Input     any
	Timeout   time.Duration
}

// Handle lets a caller wait for a started workflow's result.
type Handle interface {
	// ID returns the workflow's unique identifier.
	ID() string
	// Wait blocks until the workflow completes and decodes its result into
	// result (a pointer), or returns ctx's error if it is cancelled first.
	Wait(ctx context.Context, result any) error
}
