// Package registry implements the Tool Registry (§4.2): an in-memory
// name -> ToolSpec store with conjunctive multi-field search. Grounded on
// the donor's runtime/registry package for its RWMutex-guarded map shape
// (registration.go's agentRegistration map) and search.go's conjunctive
// filter/collect pipeline, collapsed here to a single in-process store
// instead of a federation of remote registries.
package registry

import (
	"strings"
	"sync"

	"toolhub.dev/hub"
	"toolhub.dev/hub/toolerrors"
)

// Filter narrows Search results. All non-empty fields are conjunctive: a
// spec must satisfy every one. Tags and Capabilities are themselves
// conjunctive — the spec must carry all listed values, not just one.
type Filter struct {
	Text         string
	Kind         toolhub.ToolKind
	Tags         []string
	Capabilities []toolhub.Capability
}

// Registry is the exclusive owner of ToolSpec instances by name (§3
// Ownership). Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	specs map[toolhub.Name]*toolhub.ToolSpec
	// order records registration order so Search and List results are
	// stable across re-registrations of the same name, per §4.2.
	order []toolhub.Name
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{specs: make(map[toolhub.Name]*toolhub.ToolSpec)}
}

// Register validates and stores spec, overwriting any existing spec with
// the same name in place (preserving its position in registration order).
// Returns a VALIDATION ToolError if spec fails ToolSpec.Validate.
func (r *Registry) Register(spec toolhub.ToolSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	cp := spec
	r.specs[spec.Name] = &cp
	return nil
}

// BulkRegister registers every spec in specs, stopping at the first
// validation failure. Specs registered before the failing one remain
// registered — callers that need all-or-nothing semantics should validate
// up front.
func (r *Registry) BulkRegister(specs []toolhub.ToolSpec) error {
	for i := range specs {
		if err := r.Register(specs[i]); err != nil {
			return toolerrors.NewWithCause("registry: bulk register failed", err).WithKind(string(toolhub.ErrorValidation))
		}
	}
	return nil
}

// Unregister removes name from the registry. Removing an absent name is a
// no-op.
func (r *Registry) Unregister(name toolhub.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.specs[name]; !ok {
		return
	}
	delete(r.specs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the spec registered under name, or false if none is.
func (r *Registry) Get(name toolhub.Name) (toolhub.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return toolhub.ToolSpec{}, false
	}
	return *spec, true
}

// List returns every registered spec in registration order.
func (r *Registry) List() []toolhub.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]toolhub.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.specs[name])
	}
	return out
}

// Snapshot is an alias for List, named for call sites that want to make
// clear they are taking a point-in-time copy before iterating elsewhere.
func (r *Registry) Snapshot() []toolhub.ToolSpec { return r.List() }

// Size returns the number of registered specs.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Clear removes every registered spec.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = make(map[toolhub.Name]*toolhub.ToolSpec)
	r.order = nil
}

// Search returns every spec matching every non-empty field of f, in
// registration order.
func (r *Registry) Search(f Filter) []toolhub.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	text := strings.ToLower(strings.TrimSpace(f.Text))
	var out []toolhub.ToolSpec
	for _, name := range r.order {
		spec := r.specs[name]
		if !matchesText(spec, text) {
			continue
		}
		if f.Kind != "" && spec.Kind != f.Kind {
			continue
		}
		if !hasAllTags(spec.Tags, f.Tags) {
			continue
		}
		if !hasAllCapabilities(spec.Capabilities, f.Capabilities) {
			continue
		}
		out = append(out, *spec)
	}
	return out
}

func matchesText(spec *toolhub.ToolSpec, text string) bool {
	if text == "" {
		return true
	}
	if strings.Contains(strings.ToLower(string(spec.Name)), text) {
		return true
	}
	return strings.Contains(strings.ToLower(spec.Description), text)
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

func hasAllCapabilities(have, want []toolhub.Capability) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[toolhub.Capability]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
