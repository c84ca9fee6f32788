// Package ptc implements the PTC (Policy-Typed-Call) Runtime (§4.1): the
// strictly-ordered pipeline that turns a ToolIntent into a ToolResult,
// wiring together the Registry, Schema Validator, Policy Engine, Budget
// Manager, adapter dispatch, Retry Engine, Evidence Builder, and the
// obsfabric event/metrics/tracing fabric. Grounded on the donor's
// runtime/agent request-handling pipeline shape (resolve -> validate ->
// enrich -> guard -> execute -> record), generalized to a fixed nine-step
// ordering.
package ptc

import (
	"fmt"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
)

// Adapters resolves the adapter.Adapter that serves a given tool. Most
// kinds (core, local-fn, skill, workflow, image-pipeline) share one Adapter
// instance per kind; rpc-tool is bound per tool name, since Directory
// Discovery dials a distinct connection per mcp.json directory (§4.4).
type Adapters struct {
	byKind map[toolhub.ToolKind]adapter.Adapter
	byName map[toolhub.Name]adapter.Adapter
}

// NewAdapters returns an Adapters dispatching byKind by default, with no
// per-name bindings yet.
func NewAdapters(byKind map[toolhub.ToolKind]adapter.Adapter) *Adapters {
	cp := make(map[toolhub.ToolKind]adapter.Adapter, len(byKind))
	for k, v := range byKind {
		cp[k] = v
	}
	return &Adapters{byKind: cp, byName: make(map[toolhub.Name]adapter.Adapter)}
}

// Bind registers a dedicated Adapter instance for name, taking priority over
// the kind-level dispatch for that one name.
func (a *Adapters) Bind(name toolhub.Name, ad adapter.Adapter) {
	a.byName[name] = ad
}

// BindAll merges bindings (as produced by discovery.Result.Bindings) into a.
func (a *Adapters) BindAll(bindings map[toolhub.Name]adapter.Adapter) {
	for name, ad := range bindings {
		a.Bind(name, ad)
	}
}

// Unbind removes any per-name binding for name, reverting it to the shared
// kind-level adapter.
func (a *Adapters) Unbind(name toolhub.Name) {
	delete(a.byName, name)
}

// SetBindings replaces the entire per-name binding map outright, as a
// Directory Discovery re-scan does: a tool directory missing from the fresh
// Result no longer has a connection to bind, so its stale binding must not
// survive the swap the way an incremental Bind/BindAll would leave it.
func (a *Adapters) SetBindings(bindings map[toolhub.Name]adapter.Adapter) {
	cp := make(map[toolhub.Name]adapter.Adapter, len(bindings))
	for k, v := range bindings {
		cp[k] = v
	}
	a.byName = cp
}

// Bindings returns a copy of the current per-name binding map, so a caller
// (the Hub, tearing down stale rpc-tool connections across a re-scan) can
// diff the old set against the new one without racing further Bind calls.
func (a *Adapters) Bindings() map[toolhub.Name]adapter.Adapter {
	cp := make(map[toolhub.Name]adapter.Adapter, len(a.byName))
	for k, v := range a.byName {
		cp[k] = v
	}
	return cp
}

// Resolve returns the Adapter that should serve name/kind: a's per-name
// binding if one exists, else the shared adapter for kind.
func (a *Adapters) Resolve(name toolhub.Name, kind toolhub.ToolKind) (adapter.Adapter, error) {
	if ad, ok := a.byName[name]; ok {
		return ad, nil
	}
	if ad, ok := a.byKind[kind]; ok {
		return ad, nil
	}
	return nil, fmt.Errorf("no adapter registered for kind %q", kind)
}
