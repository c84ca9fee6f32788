// Package skill implements the skill tools adapter (§4.3): an
// instruction-only result by default, or a handler-driven invocation when
// one is attached, gated against the frontmatter's allowedTools list for
// any sub-tool invocation it makes. Grounded on the donor's skillparser
// loader output plus runtime/agent/tools dispatch-by-name shape.
package skill

import (
	"context"
	"sync"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/toolerrors"
)

// Context is what a Handler receives in place of raw ExecContext access: a
// narrow, skill-scoped surface for reading bundled resources and invoking
// allow-listed sub-tools.
type Context interface {
	// ReadResource returns the contents of the resource at relPath (relative
	// to the skill's directory).
	ReadResource(relPath string) ([]byte, error)
	// ResourcesByType returns every bundled resource of the given type.
	ResourcesByType(t toolhub.ResourceType) []toolhub.SkillResource
	// InvokeTool invokes another tool by name, gated against the skill's
	// allowedTools list; returns an error if name is not allowed or the
	// invoker was not configured.
	InvokeTool(ctx context.Context, name string, args map[string]any) (toolhub.ToolResult, error)
}

// Handler implements a skill's executable behavior. Skills with no Handler
// attached fall back to returning their instruction-only payload.
type Handler func(ctx context.Context, skillCtx Context, args map[string]any) (adapter.Outcome, error)

// Invoker is the narrow surface the Adapter needs from the PTC Runtime/Hub
// to support a skill's gated sub-tool invocations.
type Invoker func(ctx context.Context, name string, args map[string]any) (toolhub.ToolResult, error)

// Registration binds a skill's definition, optional handler, and resource
// reader together.
type Registration struct {
	Definition   toolhub.SkillDefinition
	Handler      Handler
	ReadResource func(relPath string) ([]byte, error)
}

// Adapter dispatches to registered skill definitions/handlers by tool name.
type Adapter struct {
	invoker Invoker

	mu  sync.RWMutex
	reg map[string]Registration
}

// New returns a skill Adapter. invoker is used to satisfy Context.InvokeTool
// for skills with a Handler that calls sub-tools; it may be nil if no
// registered skill does so.
func New(invoker Invoker) *Adapter {
	return &Adapter{invoker: invoker, reg: make(map[string]Registration)}
}

// Register binds name (the skill's ToolSpec.Name) to its Registration.
func (a *Adapter) Register(name string, reg Registration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reg[name] = reg
}

// Kind implements adapter.Adapter.
func (a *Adapter) Kind() toolhub.ToolKind { return toolhub.ToolKindSkill }

// ListTools implements adapter.Adapter; skill specs are built by Directory
// Discovery's skill loader, not queried back from the adapter.
func (a *Adapter) ListTools(context.Context) ([]toolhub.ToolSpec, error) { return nil, nil }

// Invoke runs the skill's Handler if one is attached, or returns the
// instruction-only payload otherwise (§4.3).
func (a *Adapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	a.mu.RLock()
	reg, ok := a.reg[string(spec.Name)]
	a.mu.RUnlock()
	if !ok {
		return adapter.Outcome{}, toolerrors.Errorf("no skill registered for %s", spec.Name).WithKind(string(toolhub.ErrorToolNotFound))
	}

	def := reg.Definition
	if reg.Handler == nil {
		return adapter.Outcome{Result: map[string]any{
			"name":         def.Frontmatter.Name,
			"description":  def.Frontmatter.Description,
			"instructions": def.Instructions,
			"resources":    def.Resources,
			"dirPath":      def.DirPath,
		}}, nil
	}

	skillCtx := &skillContext{def: def, readResource: reg.ReadResource, invoker: a.invoker, allowed: allowSet(def.Frontmatter.AllowedTools)}
	outcome, err := reg.Handler(ctx, skillCtx, args)
	if err != nil {
		return adapter.Outcome{}, toolerrors.NewWithCause("skill handler failed", err).WithKind(string(toolhub.ErrorUpstream))
	}
	return outcome, nil
}

func allowSet(names []string) map[string]struct{} {
	if names == nil {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

type skillContext struct {
	def          toolhub.SkillDefinition
	readResource func(string) ([]byte, error)
	invoker      Invoker
	// allowed is nil when the frontmatter declared no allowedTools list, in
	// which case every sub-tool invocation is permitted; a non-nil, possibly
	// empty set restricts invocation to exactly the named tools.
	allowed map[string]struct{}
}

func (c *skillContext) ReadResource(relPath string) ([]byte, error) {
	if c.readResource == nil {
		return nil, toolerrors.Errorf("skill %s has no resource reader configured", c.def.Frontmatter.Name)
	}
	return c.readResource(relPath)
}

func (c *skillContext) ResourcesByType(t toolhub.ResourceType) []toolhub.SkillResource {
	var out []toolhub.SkillResource
	for _, r := range c.def.Resources {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

func (c *skillContext) InvokeTool(ctx context.Context, name string, args map[string]any) (toolhub.ToolResult, error) {
	if c.allowed != nil {
		if _, ok := c.allowed[name]; !ok {
			return toolhub.ToolResult{}, toolerrors.Errorf("skill %s is not allowed to invoke %s", c.def.Frontmatter.Name, name).WithKind(string(toolhub.ErrorPolicyDenied))
		}
	}
	if c.invoker == nil {
		return toolhub.ToolResult{}, toolerrors.Errorf("skill %s has no sub-tool invoker configured", c.def.Frontmatter.Name)
	}
	return c.invoker(ctx, name, args)
}
