// Package core implements the Core tools adapter (§4.3): a built-in handler
// table keyed by tool name, dispatching to sandboxed file/HTTP/utility
// tools registered as first-class ToolSpecs. Path containment and
// network/SQL gating are the Policy Engine's job (package policy); this
// adapter enforces its own limits directly: file size caps, HTTP body size
// caps, and request timeouts (§7). Grounded
// structurally on the donor pack's C360Studio-semspec file executor
// (handler-table-by-name dispatch, validate-then-execute shape).
package core

import (
	"context"
	"net/http"
	"time"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

const (
	maxFileBytes = 10 << 20 // 10 MiB
	maxHTTPBytes = 10 << 20 // 10 MiB
	httpTimeout  = 15 * time.Second
)

// Handler implements one built-in tool. args are the enriched, policy-gated
// call arguments.
type Handler func(ctx context.Context, args map[string]any) (adapter.Outcome, error)

// Adapter dispatches to a built-in handler table keyed by tool name.
type Adapter struct {
	handlers map[string]Handler
	specs    []toolhub.ToolSpec
	client   *http.Client
}

// New returns a core Adapter with the standard file/HTTP/util tool set
// registered.
func New() *Adapter {
	a := &Adapter{handlers: make(map[string]Handler), client: &http.Client{Timeout: httpTimeout}}
	a.registerBuiltins()
	return a
}

// Kind implements adapter.Adapter.
func (a *Adapter) Kind() toolhub.ToolKind { return toolhub.ToolKindCore }

// ListTools returns the built-in specs this adapter serves.
func (a *Adapter) ListTools(context.Context) ([]toolhub.ToolSpec, error) {
	out := make([]toolhub.ToolSpec, len(a.specs))
	copy(out, a.specs)
	return out, nil
}

// Invoke dispatches to the handler registered for spec.Name.
func (a *Adapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	h, ok := a.handlers[string(spec.Name)]
	if !ok {
		return adapter.Outcome{}, toolerrors.Errorf("no core handler for %s", spec.Name).WithKind(string(toolhub.ErrorToolNotFound))
	}
	return h(ctx, args)
}

// registerBuiltins wires the file, HTTP, and utility tool tables into a's
// handler map. Called once from New.
func (a *Adapter) registerBuiltins() {
	a.registerFSTools()
	a.registerHTTPTools()
	a.registerUtilTools()
}

func (a *Adapter) register(spec toolhub.ToolSpec, h Handler) {
	a.specs = append(a.specs, spec)
	a.handlers[string(spec.Name)] = h
}

func stringSchema(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func objSchema(required []string, props map[string]any) map[string]any {
	reqAny := make([]any, len(required))
	for i, r := range required {
		reqAny[i] = r
	}
	return map[string]any{"type": "object", "required": reqAny, "properties": props}
}
