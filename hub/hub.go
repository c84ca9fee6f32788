// Package hub implements the ToolHub facade (§6): the single entry point
// embedders use to discover tool directories, keep the Registry in sync with
// them (on demand or via a live filesystem watch), and invoke tools through
// the PTC Runtime. Grounded structurally on the donor's cmd/demo/main.go
// wiring style (construct collaborators, wire them together, expose one
// small surface) generalized from a one-shot demo into a long-lived facade.
package hub

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/adapter/core"
	"toolhub.dev/hub/adapter/localfn"
	"toolhub.dev/hub/adapter/skill"
	"toolhub.dev/hub/adapter/workflow"
	"toolhub.dev/hub/budget"
	"toolhub.dev/hub/discovery"
	"toolhub.dev/hub/evidence"
	"toolhub.dev/hub/jobs"
	"toolhub.dev/hub/obsfabric"
	"toolhub.dev/hub/policy"
	"toolhub.dev/hub/ptc"
	"toolhub.dev/hub/registry"
	"toolhub.dev/hub/retry"
	"toolhub.dev/hub/schema"
	"toolhub.dev/hub/telemetry"
	"toolhub.dev/hub/toolerrors"
)

// Options wires every Hub collaborator. Roots may be empty at construction
// and supplied later via AddRoots/SetRoots.
type Options struct {
	Roots         []discovery.Root
	OnScanError   discovery.OnError
	WatchDebounce time.Duration

	Policy         policy.Options
	Budget         budget.Config
	RetryPolicy    retry.Policy
	DefaultTimeout time.Duration

	// WorkflowAdapter overrides the default embedded in-memory-engine
	// workflow adapter, e.g. with workflow.NewEmbedded(workflow.NewTemporalEngine(...))
	// or workflow.NewRemote(caller, jobMgr) for an external workflow-engine API.
	WorkflowAdapter adapter.Adapter
	// ImagePipeline, if set, registers the image-pipeline tool kind against
	// this back-end. Left nil, no image-pipeline adapter is registered and
	// any discovered image-pipeline spec fails to resolve at invoke time.
	ImagePipeline adapter.Adapter

	JobStore         jobs.Store
	JobTTL           time.Duration
	JobSweepInterval time.Duration

	Events  *obsfabric.Log
	Metrics *obsfabric.Metrics
	Tracer  telemetry.Tracer
	Logger  telemetry.Logger
}

func (o Options) defaulted() Options {
	if o.Events == nil {
		o.Events = obsfabric.NewLog()
	}
	if o.Metrics == nil {
		o.Metrics = obsfabric.NewMetrics()
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.NewNoopTracer()
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	return o
}

// Hub is the ToolHub facade: Registry + Directory Discovery + PTC Runtime,
// wired together and exposed through one small programmatic surface.
type Hub struct {
	registry *registry.Registry
	runtime  *ptc.Runtime
	adapters *ptc.Adapters
	jobs     *jobs.Manager

	core           *core.Adapter
	localfn        *localfn.Adapter
	skill          *skill.Adapter
	workflowEngine adapter.Adapter

	onScanError   discovery.OnError
	watchDebounce time.Duration

	mu      sync.RWMutex
	roots   []discovery.Root
	scanner *discovery.Scanner
	watcher *discovery.Watcher
}

// New builds a Hub from opts but does not scan anything yet; call
// InitAllTools (or AddRoots/SetRoots with refresh=true) to populate the
// Registry.
func New(opts Options) *Hub {
	opts = opts.defaulted()

	h := &Hub{
		registry:      registry.New(),
		onScanError:   opts.OnScanError,
		watchDebounce: opts.WatchDebounce,
		jobs: jobs.New(jobs.Options{
			Store: opts.JobStore, Log: opts.Events,
			TTL: opts.JobTTL, SweepInterval: opts.JobSweepInterval,
		}),
	}

	h.core = core.New()
	h.localfn = localfn.New()
	h.skill = skill.New(func(ctx context.Context, name string, args map[string]any) (toolhub.ToolResult, error) {
		return h.InvokeTool(ctx, name, args, nil), nil
	})

	h.workflowEngine = opts.WorkflowAdapter
	if h.workflowEngine == nil {
		h.workflowEngine = workflow.NewEmbedded(workflow.NewInMemEngine())
	}

	byKind := map[toolhub.ToolKind]adapter.Adapter{
		toolhub.ToolKindCore:     h.core,
		toolhub.ToolKindLocalFn:  h.localfn,
		toolhub.ToolKindSkill:    h.skill,
		toolhub.ToolKindWorkflow: h.workflowEngine,
	}
	if opts.ImagePipeline != nil {
		byKind[toolhub.ToolKindImagePipeline] = opts.ImagePipeline
	}
	h.adapters = ptc.NewAdapters(byKind)

	h.runtime = ptc.New(ptc.Options{
		Registry:       h.registry,
		Validator:      schema.New(),
		Policy:         policy.New(opts.Policy),
		Budget:         budget.New(opts.Budget),
		Adapters:       h.adapters,
		Evidence:       evidence.New(),
		RetryPolicy:    opts.RetryPolicy,
		Events:         opts.Events,
		Metrics:        opts.Metrics,
		Tracer:         opts.Tracer,
		Logger:         opts.Logger,
		DefaultTimeout: opts.DefaultTimeout,
	})

	h.setRootsLocked(opts.Roots)
	return h
}

func (h *Hub) setRootsLocked(roots []discovery.Root) {
	h.roots = roots
	h.scanner = discovery.New(discovery.Options{Roots: roots, OnError: h.onScanError})
}

// Jobs exposes the Async Job Manager so an embedder can poll/cancel queued
// work an async workflow or image-pipeline invocation produced.
func (h *Hub) Jobs() *jobs.Manager { return h.jobs }

// Registry exposes the underlying Tool Registry for read-only inspection
// (Search, Size) beyond what ListToolMetadata offers.
func (h *Hub) Registry() *registry.Registry { return h.registry }

// InitAllTools performs the first discovery scan, populating the Registry.
// Equivalent to RefreshTools; kept as a distinct name so it reads clearly at
// call sites as "first load".
func (h *Hub) InitAllTools(ctx context.Context) error {
	return h.RefreshTools(ctx)
}

// RefreshTools re-scans every configured root and replaces the Registry's
// contents: it clears the Registry (re-registering the Core adapter's
// built-ins immediately after, since those are not discovery-sourced),
// bulk-registers the freshly scanned specs, re-synchronizes the skill
// adapter's per-name registrations, and swaps the rpc-tool per-name adapter
// bindings — closing any stale ones (a directory removed or reconfigured
// since the last scan) so their child processes/connections do not leak.
func (h *Hub) RefreshTools(ctx context.Context) error {
	h.mu.RLock()
	scanner := h.scanner
	h.mu.RUnlock()

	result := scanner.Scan(ctx)

	h.registry.Clear()
	if err := h.registerCoreBuiltins(); err != nil {
		return err
	}
	if err := h.registry.BulkRegister(result.Specs); err != nil {
		return err
	}

	h.resyncSkills(result.Specs)

	stale := h.adapters.Bindings()
	h.adapters.SetBindings(result.Bindings)
	closeStaleBindings(stale, result.Bindings)

	return nil
}

func (h *Hub) registerCoreBuiltins() error {
	specs, err := h.core.ListTools(context.Background())
	if err != nil {
		return err
	}
	return h.registry.BulkRegister(specs)
}

// resyncSkills re-registers every discovered skill spec's definition with
// the skill adapter, so skills/SKILL.md bundles found on this scan resolve
// at invoke time without their own kind-level ListTools round trip (skill
// specs are discovery-sourced, not adapter-queried; see skill.Adapter's own
// doc comment).
func (h *Hub) resyncSkills(specs []toolhub.ToolSpec) {
	for _, spec := range specs {
		if spec.Kind != toolhub.ToolKindSkill {
			continue
		}
		def, ok := spec.Impl.(toolhub.SkillDefinition)
		if !ok {
			continue
		}
		h.skill.Register(string(spec.Name), skill.Registration{
			Definition:   def,
			ReadResource: readResourceUnder(def.DirPath),
		})
	}
}

func closeStaleBindings(old, fresh map[toolhub.Name]adapter.Adapter) {
	stillBound := make(map[adapter.Adapter]struct{}, len(fresh))
	for _, ad := range fresh {
		stillBound[ad] = struct{}{}
	}
	closed := make(map[adapter.Adapter]struct{})
	for _, ad := range old {
		if _, ok := stillBound[ad]; ok {
			continue
		}
		if _, done := closed[ad]; done {
			continue
		}
		closed[ad] = struct{}{}
		if c, ok := ad.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// AddRoots appends roots to the discovery set; if refresh, it re-scans
// immediately.
func (h *Hub) AddRoots(ctx context.Context, roots []discovery.Root, refresh bool) error {
	h.mu.Lock()
	h.setRootsLocked(append(append([]discovery.Root{}, h.roots...), roots...))
	h.mu.Unlock()
	if refresh {
		return h.RefreshTools(ctx)
	}
	return nil
}

// SetRoots replaces the discovery set outright; if refresh, it re-scans
// immediately.
func (h *Hub) SetRoots(ctx context.Context, roots []discovery.Root, refresh bool) error {
	h.mu.Lock()
	h.setRootsLocked(append([]discovery.Root{}, roots...))
	h.mu.Unlock()
	if refresh {
		return h.RefreshTools(ctx)
	}
	return nil
}

// WatchOptions configures WatchRoots.
type WatchOptions struct {
	// Debounce overrides the Hub's configured debounce for this watch only.
	// <= 0 uses the Hub-level default (200ms if that is also unset).
	Debounce time.Duration
}

// WatchRoots starts a filesystem watch over the current discovery roots,
// debouncing change bursts into a single RefreshTools call. Calling it
// again without an intervening UnwatchRoots stops the previous watch first.
func (h *Hub) WatchRoots(ctx context.Context, opts WatchOptions) error {
	if err := h.UnwatchRoots(); err != nil {
		return err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = h.watchDebounce
	}

	h.mu.Lock()
	scanner := h.scanner
	watcher := discovery.NewWatcher(scanner, func(rescanCtx context.Context) { _ = h.RefreshTools(rescanCtx) }, debounce)
	h.watcher = watcher
	h.mu.Unlock()

	return watcher.Start(ctx)
}

// UnwatchRoots stops an in-progress watch, if any. Safe to call when no
// watch is active.
func (h *Hub) UnwatchRoots() error {
	h.mu.Lock()
	watcher := h.watcher
	h.watcher = nil
	h.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Stop()
}

// ToolMetadata is one entry of ListToolMetadata's result (§6).
type ToolMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListToolMetadata returns every registered tool's name and description, in
// registration order.
func (h *Hub) ListToolMetadata() []ToolMetadata {
	specs := h.registry.List()
	out := make([]ToolMetadata, 0, len(specs))
	for _, s := range specs {
		out = append(out, ToolMetadata{Name: string(s.Name), Description: s.Description})
	}
	return out
}

// ToolDescription is what GetToolDescription returns: for a skill, the
// instruction-only payload (no schema, since skills are not schema-typed);
// for every other kind, the structural spec subset (§6).
type ToolDescription struct {
	Name         string         `json:"name"`
	Kind         string         `json:"kind"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// GetToolDescription returns name's description, or ok=false if unregistered.
func (h *Hub) GetToolDescription(name string) (ToolDescription, bool) {
	spec, ok := h.registry.Get(toolhub.Name(name))
	if !ok {
		return ToolDescription{}, false
	}

	caps := make([]string, 0, len(spec.Capabilities))
	for _, c := range spec.Capabilities {
		caps = append(caps, string(c))
	}
	desc := ToolDescription{
		Name: string(spec.Name), Kind: string(spec.Kind), Description: spec.Description,
		Tags: spec.Tags, Capabilities: caps, ResourceID: spec.ResourceID,
	}

	if spec.Kind == toolhub.ToolKindSkill {
		if def, ok := spec.Impl.(toolhub.SkillDefinition); ok {
			desc.Instructions = def.Instructions
		}
		return desc, true
	}

	desc.InputSchema = spec.InputSchema
	desc.OutputSchema = spec.OutputSchema
	return desc, true
}

// InvokeOptions configures a single InvokeTool call. A zero value (or nil
// *InvokeOptions) is valid: missing RequestID/TaskID are filled with fresh
// uuids, matching the PTC Runtime's own requirement that every invocation
// carry request/task identity for its audit trail.
type InvokeOptions struct {
	Purpose        string
	IdempotencyKey string
	RequestID      string
	TaskID         string
	TraceID        string
	UserID         string
	Permissions    []toolhub.Capability
	Budget         *toolhub.Budget
	DryRun         bool
}

// InvokeTool builds a ToolIntent/ExecContext from name/args/opts and runs it
// through the PTC Runtime.
func (h *Hub) InvokeTool(ctx context.Context, name string, args map[string]any, opts *InvokeOptions) toolhub.ToolResult {
	if opts == nil {
		opts = &InvokeOptions{}
	}
	intent := toolhub.ToolIntent{
		Tool: toolhub.Name(name), Args: args,
		Purpose: opts.Purpose, IdempotencyKey: opts.IdempotencyKey,
	}
	execCtx := &toolhub.ExecContext{
		RequestID: opts.RequestID, TaskID: opts.TaskID, TraceID: opts.TraceID, UserID: opts.UserID,
		Permissions: opts.Permissions, Budget: opts.Budget, DryRun: opts.DryRun,
	}
	if execCtx.RequestID == "" {
		execCtx.RequestID = uuid.NewString()
	}
	if execCtx.TaskID == "" {
		execCtx.TaskID = uuid.NewString()
	}
	return h.InvokeIntent(ctx, intent, execCtx)
}

// InvokeIntent runs intent through the PTC Runtime under execCtx's
// authority, unmodified — a thin pass-through for callers that already hold
// a fully-formed ExecContext, distinct from InvokeTool.
func (h *Hub) InvokeIntent(ctx context.Context, intent toolhub.ToolIntent, execCtx *toolhub.ExecContext) toolhub.ToolResult {
	return h.runtime.Invoke(ctx, intent, execCtx)
}

// Shutdown stops any active watch, closes every rpc-tool adapter's
// underlying transport (terminating stdio child processes), stops the
// embedded workflow engine if it supports explicit teardown, and disposes
// the Job Manager's sweeper.
func (h *Hub) Shutdown() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(h.UnwatchRoots())

	closed := make(map[adapter.Adapter]struct{})
	for _, ad := range h.adapters.Bindings() {
		if _, done := closed[ad]; done {
			continue
		}
		closed[ad] = struct{}{}
		if c, ok := ad.(io.Closer); ok {
			record(c.Close())
		}
	}

	if stopper, ok := h.workflowEngine.(interface{ Stop() error }); ok {
		record(stopper.Stop())
	}

	h.jobs.Dispose()
	return firstErr
}

// readResourceUnder returns a skill.Registration.ReadResource implementation
// scoped to dirPath (the skill bundle's own directory), refusing any relPath
// that escapes it via "..".
func readResourceUnder(dirPath string) func(string) ([]byte, error) {
	return func(relPath string) ([]byte, error) {
		full := filepath.Join(dirPath, relPath)
		if !within(dirPath, full) {
			return nil, toolerrors.Errorf("resource path %q escapes skill directory", relPath).WithKind(string(toolhub.ErrorPathOutsideSandbox))
		}
		return os.ReadFile(full)
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
