// Package rpctool implements the rpc-tool adapter (§4.3, §5): a single
// Adapter dispatching through one of three transports behind a common Caller
// interface — stdio child process, HTTP, and gRPC — grounded on the donor's
// runtime/mcp Caller abstraction (runtime/mcp/caller.go), which unifies its
// own stdio/SSE clients the same way.
package rpctool

import (
	"context"
	"io"
	"sync"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

// Caller is implemented by each transport (stdio, HTTP, gRPC). CallTool
// returns isError=true when the remote tool itself reported a failure (as
// opposed to a transport-level err), matching MCP's content.isError
// convention so callers can distinguish "tool ran and failed" from
// "couldn't reach the tool".
type Caller interface {
	ListTools(ctx context.Context) ([]toolhub.ToolSpec, error)
	CallTool(ctx context.Context, name string, args map[string]any) (result any, isError bool, err error)
}

// Adapter dispatches rpc-tool invocations to a transport-specific Caller,
// caching the back-end's tool list until invalidated.
type Adapter struct {
	caller Caller

	mu     sync.RWMutex
	cached []toolhub.ToolSpec
	loaded bool
}

// New returns an rpc-tool Adapter backed by caller.
func New(caller Caller) *Adapter {
	return &Adapter{caller: caller}
}

// Kind implements adapter.Adapter.
func (a *Adapter) Kind() toolhub.ToolKind { return toolhub.ToolKindRPCTool }

// ListTools returns the back-end's advertised tools, caching the first
// successful result. Call InvalidateCache to force a re-fetch after a
// back-end reload.
func (a *Adapter) ListTools(ctx context.Context) ([]toolhub.ToolSpec, error) {
	a.mu.RLock()
	if a.loaded {
		cached := a.cached
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	specs, err := a.caller.ListTools(ctx)
	if err != nil {
		return nil, toolerrors.NewWithCause("rpc-tool: list tools failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	for i := range specs {
		specs[i].Kind = toolhub.ToolKindRPCTool
	}

	a.mu.Lock()
	a.cached = specs
	a.loaded = true
	a.mu.Unlock()
	return specs, nil
}

// InvalidateCache clears the cached tool list, forcing the next ListTools
// call to re-fetch from the back-end.
func (a *Adapter) InvalidateCache() {
	a.mu.Lock()
	a.loaded = false
	a.cached = nil
	a.mu.Unlock()
}

// Close releases a's underlying transport if it owns one worth tearing
// down explicitly — a StdioCaller's child process, in practice. HTTP and
// gRPC callers have nothing to close and are left alone.
func (a *Adapter) Close() error {
	if c, ok := a.caller.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Invoke calls the named tool through the configured transport. A remote
// isError response is classified as ErrorUpstream, matching the donor's
// "thrown error" mapping for MCP tool failures.
func (a *Adapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
	result, isError, err := a.caller.CallTool(ctx, string(spec.Name), args)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("rpc-tool: call failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	if isError {
		return adapter.Outcome{}, toolerrors.Errorf("rpc-tool %s reported an error result", spec.Name).WithKind(string(toolhub.ErrorUpstream))
	}
	return adapter.Outcome{Result: result, Raw: result}, nil
}
