// Package localfn implements the local-fn tools adapter (§4.3, §7). Go has no
// dynamically-loaded "entry module" equivalent to a host-language index.js,
// so local functions are a compile-time plugin registry: packages placed
// under a discovery root register a LocalFunction via func init(), the way
// the donor's codegen plugins self-register with goa's plugin registry
// (apitypes/init.go, plugins/mcp/plugin/init.go).
package localfn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

// LocalFunction is the contract a registered local function implements.
// Invoke may return a bare value (wrapped as {output: value} if not already
// an object) or a map shaped like {result, evidence}; see normalizeResult.
type LocalFunction interface {
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// LocalFunctionFunc adapts a plain function to LocalFunction.
type LocalFunctionFunc func(ctx context.Context, input map[string]any) (any, error)

// Invoke satisfies LocalFunction.
func (f LocalFunctionFunc) Invoke(ctx context.Context, input map[string]any) (any, error) {
	return f(ctx, input)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]registration{}
)

type registration struct {
	spec toolhub.ToolSpec
	fn   LocalFunction
}

// Register adds fn to the global local-fn registry under spec.Name. Intended
// to be called from a package-level func init() in a first-class Go package
// placed under a discovery root. Register panics on a duplicate name, the
// same failure mode as registering the same codegen plugin name twice.
func Register(spec toolhub.ToolSpec, fn LocalFunction) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := string(spec.Name)
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("localfn: duplicate registration for %q", name))
	}
	spec.Kind = toolhub.ToolKindLocalFn
	registry[name] = registration{spec: spec, fn: fn}
}

// RegisterFunc is a convenience wrapper around Register for plain functions.
func RegisterFunc(spec toolhub.ToolSpec, fn func(ctx context.Context, input map[string]any) (any, error)) {
	Register(spec, LocalFunctionFunc(fn))
}

// reset clears the global registry; used by tests to avoid cross-test
// pollution since registration is normally a one-shot init()-time effect.
func reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]registration{}
}

// Lookup returns the spec registered under name, if any. Directory
// Discovery's local-fn loader uses this to confirm that a directory carrying
// an entry-file marker has a matching compile-time registration, surfacing a
// load-phase error otherwise.
func Lookup(name string) (toolhub.ToolSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[name]
	if !ok {
		return toolhub.ToolSpec{}, false
	}
	return reg.spec, true
}

// Adapter dispatches to functions registered via Register/RegisterFunc.
type Adapter struct{}

// New returns a local-fn Adapter backed by the global registry.
func New() *Adapter { return &Adapter{} }

// Kind implements adapter.Adapter.
func (a *Adapter) Kind() toolhub.ToolKind { return toolhub.ToolKindLocalFn }

// ListTools returns the specs of all globally registered local functions, in
// a stable name-sorted order.
func (a *Adapter) ListTools(context.Context) ([]toolhub.ToolSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	specs := make([]toolhub.ToolSpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, registry[name].spec)
	}
	return specs, nil
}

// Invoke looks up the registered function for spec.Name and calls it,
// normalizing its return value into an adapter.Outcome.
func (a *Adapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
	registryMu.RLock()
	reg, ok := registry[string(spec.Name)]
	registryMu.RUnlock()
	if !ok {
		return adapter.Outcome{}, toolerrors.Errorf("no local function registered for %s", spec.Name).WithKind(string(toolhub.ErrorToolNotFound))
	}
	raw, err := reg.fn.Invoke(ctx, args)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("local function invocation failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	return normalizeResult(raw), nil
}

// normalizeResult accepts either a bare value, which is wrapped under
// {"output": value} unless it is already a map, or a {result, evidence}
// shaped map, which is unpacked into the Outcome's Result/Evidence fields.
func normalizeResult(raw any) adapter.Outcome {
	if m, ok := raw.(map[string]any); ok {
		result, hasResult := m["result"]
		evRaw, hasEvidence := m["evidence"]
		if hasResult || hasEvidence {
			return adapter.Outcome{Result: result, Evidence: toEvidenceSlice(evRaw)}
		}
		return adapter.Outcome{Result: m}
	}
	return adapter.Outcome{Result: map[string]any{"output": raw}}
}

func toEvidenceSlice(v any) []toolhub.Evidence {
	items, ok := v.([]toolhub.Evidence)
	if ok {
		return items
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]toolhub.Evidence, 0, len(raw))
	for _, item := range raw {
		if ev, ok := item.(toolhub.Evidence); ok {
			out = append(out, ev)
		}
	}
	return out
}
