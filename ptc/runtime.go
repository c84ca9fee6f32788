package ptc

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/adapter/workflow"
	"toolhub.dev/hub/budget"
	"toolhub.dev/hub/evidence"
	"toolhub.dev/hub/obsfabric"
	"toolhub.dev/hub/policy"
	"toolhub.dev/hub/registry"
	"toolhub.dev/hub/retry"
	"toolhub.dev/hub/schema"
	"toolhub.dev/hub/telemetry"
	"toolhub.dev/hub/toolerrors"
)

// maxAvailableToolNames caps the "available tools" detail list on a
// TOOL_NOT_FOUND error, per §4.1's "truncated list of available names".
const maxAvailableToolNames = 20

// Options wires the Runtime's collaborators. Registry, Validator, Policy,
// Budget, and Adapters are required; the rest default to usable,
// side-effect-free implementations.
type Options struct {
	Registry  *registry.Registry
	Validator *schema.Validator
	Policy    *policy.Engine
	Budget    *budget.Manager
	Adapters  *Adapters

	Evidence    *evidence.Builder
	RetryPolicy retry.Policy

	// Events and Metrics are the domain-mandated obsfabric fabric (§4.10):
	// always-present, in-process state for the event log and the named
	// counters/histograms this pipeline emits.
	Events  *obsfabric.Log
	Metrics *obsfabric.Metrics
	// Tracer and Logger are the pluggable ambient telemetry layer (package
	// telemetry), forwarding spans/log lines to whatever OTEL/clue backend
	// a deployment configures.
	Tracer telemetry.Tracer
	Logger telemetry.Logger

	// DefaultTimeout is used when neither the invocation's ExecContext.Budget
	// nor the Budget Manager's per-tool override set one.
	DefaultTimeout time.Duration
}

func (o Options) defaulted() Options {
	if o.Evidence == nil {
		o.Evidence = evidence.New()
	}
	if o.RetryPolicy == (retry.Policy{}) {
		o.RetryPolicy = retry.DefaultPolicy()
	}
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
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	return o
}

// Runtime is the PTC Runtime: invoke(intent, ctx) -> ToolResult, never
// raising.
type Runtime struct {
	opts Options
}

// New builds a Runtime from opts. Panics if a required collaborator is nil,
// since a misconfigured Runtime cannot safely serve traffic.
func New(opts Options) *Runtime {
	opts = opts.defaulted()
	switch {
	case opts.Registry == nil:
		panic("ptc: Registry is required")
	case opts.Validator == nil:
		panic("ptc: Validator is required")
	case opts.Policy == nil:
		panic("ptc: Policy is required")
	case opts.Budget == nil:
		panic("ptc: Budget is required")
	case opts.Adapters == nil:
		panic("ptc: Adapters is required")
	}
	return &Runtime{opts: opts}
}

// Invoke runs the nine-step pipeline for intent under execCtx's authority.
// It never panics or returns a non-nil error: every outcome is expressed as
// a ToolResult.
func (r *Runtime) Invoke(ctx context.Context, intent toolhub.ToolIntent, execCtx *toolhub.ExecContext) toolhub.ToolResult {
	if execCtx == nil {
		execCtx = &toolhub.ExecContext{}
	}
	start := time.Now()
	spanCtx, span := r.opts.Tracer.Start(ctx, "ptc.invoke")
	span.AddEvent("resolve", "tool", string(intent.Tool))
	defer span.End()

	// Step 1: resolve.
	spec, ok := r.opts.Registry.Get(intent.Tool)
	if !ok {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorToolNotFound,
			"tool not found: "+string(intent.Tool),
			map[string]any{"availableTools": r.truncatedToolNames()})
	}

	r.opts.Events.Append(toolhub.Event{
		Type: toolhub.EventToolCalled, RequestID: execCtx.RequestID, TaskID: execCtx.TaskID,
		ToolName: spec.Name, TraceID: execCtx.TraceID,
		Fields: map[string]any{"purpose": intent.Purpose, "dryRun": execCtx.DryRun},
	})

	// Steps 2-3: validate input, then enrich with schema defaults. The
	// validator folds coercion, default-fill, and validation into one pass
	// (schema.Validator.Validate), so both steps are one call here.
	inputResult, err := r.opts.Validator.Validate(spanCtx, spec.InputSchema, intent.Args)
	if err != nil {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorInputSchemaInvalid,
			"input schema validation error: "+err.Error(), nil)
	}
	if !inputResult.Valid {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorInputSchemaInvalid,
			"args do not satisfy inputSchema", map[string]any{"errors": inputResult.Errors})
	}
	enrichedArgs := asArgsMap(inputResult.Data)

	// Step 4: policy gate.
	if perr := r.opts.Policy.Enforce(spanCtx, &spec, enrichedArgs, execCtx); perr != nil {
		var denied *policy.PolicyDenied
		if errors.As(perr, &denied) {
			r.opts.Events.Append(toolhub.Event{
				Type: toolhub.EventPolicyDenied, RequestID: execCtx.RequestID, TaskID: execCtx.TaskID,
				ToolName: spec.Name, TraceID: execCtx.TraceID,
				Fields: map[string]any{"reason": denied.Reason},
			})
			r.opts.Metrics.IncCounter("policy_denied_total", map[string]string{"tool": string(spec.Name), "reason": denied.Reason})
			caps := make([]string, 0, len(denied.MissingCapabilities))
			for _, c := range denied.MissingCapabilities {
				caps = append(caps, string(c))
			}
			kind := denied.Kind
			if kind == "" {
				kind = toolhub.ErrorPolicyDenied
			}
			return r.fail(spanCtx, span, intent, execCtx, start, kind,
				"policy denied: "+denied.Reason, map[string]any{"missingCapabilities": caps})
		}
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorPolicyDenied, perr.Error(), nil)
	}

	if execCtx.DryRun {
		return r.dryRunResult(spanCtx, span, spec, enrichedArgs, execCtx, start)
	}

	// Step 5: budget admission.
	if aerr := r.opts.Budget.Admit(string(spec.Name)); aerr != nil {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorBudgetExceeded, aerr.Error(), nil)
	}

	// Step 6: execute, wrapped in circuit breaker -> retry loop -> timeout.
	timeout := r.resolveTimeout(spec, execCtx)
	execCtx2, cancel := context.WithTimeout(spanCtx, timeout)
	defer cancel()
	if intent.IdempotencyKey != "" {
		execCtx2 = workflow.WithIdempotencyKey(execCtx2, intent.IdempotencyKey)
	}

	ad, aerr := r.opts.Adapters.Resolve(spec.Name, spec.Kind)
	if aerr != nil {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorUpstream, aerr.Error(), nil)
	}

	retryPolicy := r.opts.RetryPolicy
	if execCtx.Budget != nil && execCtx.Budget.MaxRetries != nil {
		retryPolicy.MaxRetries = *execCtx.Budget.MaxRetries
	}

	var outcome adapter.Outcome
	classify := func(err error) (string, bool) {
		kind := toolhub.ErrorKind(toolerrors.KindOf(err))
		if kind == "" {
			kind = toolhub.ErrorUpstream
		}
		return string(kind), kind.Retryable()
	}
	onRetry := func(err error, attempt int) {
		r.opts.Metrics.IncCounter("tool_retries_total", map[string]string{"tool": string(spec.Name)})
		r.opts.Events.Append(toolhub.Event{
			Type: toolhub.EventRetry, RequestID: execCtx.RequestID, TaskID: execCtx.TaskID,
			ToolName: spec.Name, TraceID: execCtx.TraceID,
			Fields: map[string]any{"attempt": attempt, "error": err.Error()},
		})
	}
	_, execErr := retry.WithRetry(execCtx2, retryPolicy, classify, onRetry, func(attemptCtx context.Context) (struct{}, error) {
		return struct{}{}, r.opts.Budget.Execute(attemptCtx, string(spec.Name), func(callCtx context.Context) error {
			out, ierr := ad.Invoke(callCtx, &spec, enrichedArgs, execCtx)
			if ierr != nil {
				return ierr
			}
			outcome = out
			return nil
		})
	})
	if execErr != nil {
		kind := toolhub.ErrorKind(toolerrors.KindOf(execErr))
		if kind == "" {
			kind = toolhub.ErrorUpstream
		}
		if execCtx2.Err() != nil {
			kind = toolhub.ErrorTimeout
		}
		return r.fail(spanCtx, span, intent, execCtx, start, kind, execErr.Error(), nil)
	}

	// Step 7: validate output.
	outputResult, verr := r.opts.Validator.Validate(spanCtx, spec.OutputSchema, outcome.Result)
	if verr != nil {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorOutputSchemaInvalid,
			"output schema validation error: "+verr.Error(), nil)
	}
	if !outputResult.Valid {
		return r.fail(spanCtx, span, intent, execCtx, start, toolhub.ErrorOutputSchemaInvalid,
			"result does not satisfy outputSchema", map[string]any{"errors": outputResult.Errors})
	}

	// Step 8: build evidence.
	durationMs := time.Since(start).Milliseconds()
	ev := r.opts.Evidence.Build(&spec, enrichedArgs, outputResult.Data, outcome.Evidence, durationMs)

	result := toolhub.ToolResult{OK: true, Result: outputResult.Data, Evidence: ev, Raw: outcome.Raw}

	// Step 9: audit & telemetry.
	r.audit(spanCtx, span, spec, intent, execCtx, result, durationMs)
	return result
}

// dryRunResult produces the §4.1 Dry-run short-circuit result, skipping
// budget admission, execution, and output validation (steps 5-7) while
// still building evidence and emitting audit telemetry (steps 8-9) so a
// dry-run invocation is as observable as a real one.
func (r *Runtime) dryRunResult(ctx context.Context, span telemetry.Span, spec toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext, start time.Time) toolhub.ToolResult {
	caps := make([]string, 0, len(spec.Capabilities))
	for _, c := range spec.Capabilities {
		caps = append(caps, string(c))
	}
	payload := map[string]any{
		"dryRun":       true,
		"tool":         string(spec.Name),
		"kind":         string(spec.Kind),
		"args":         args,
		"capabilities": caps,
	}
	durationMs := time.Since(start).Milliseconds()
	ev := r.opts.Evidence.Build(&spec, args, payload, nil, durationMs)
	result := toolhub.ToolResult{OK: true, Result: payload, Evidence: ev}
	r.audit(ctx, span, spec, toolhub.ToolIntent{Tool: spec.Name}, execCtx, result, durationMs)
	return result
}

func (r *Runtime) audit(ctx context.Context, span telemetry.Span, spec toolhub.ToolSpec, intent toolhub.ToolIntent, execCtx *toolhub.ExecContext, result toolhub.ToolResult, durationMs int64) {
	ok := result.OK
	r.opts.Events.Append(toolhub.Event{
		Type: toolhub.EventToolResult, RequestID: execCtx.RequestID, TaskID: execCtx.TaskID,
		ToolName: spec.Name, TraceID: execCtx.TraceID,
		Fields: map[string]any{"ok": ok, "durationMs": durationMs},
	})
	okLabel := "true"
	if !ok {
		okLabel = "false"
	}
	r.opts.Metrics.IncCounter("tool_invocations_total", map[string]string{"tool": string(spec.Name), "ok": okLabel})
	r.opts.Metrics.ObserveLatency(string(spec.Name), float64(durationMs))
	statusDesc := "ok"
	statusCode := codes.Ok
	if !ok {
		statusCode = codes.Error
		statusDesc = "tool invocation failed"
	}
	span.AddEvent("result", "tool", string(spec.Name), "ok", ok, "durationMs", durationMs)
	span.SetStatus(statusCode, statusDesc)
	r.opts.Logger.Info(ctx, "tool invocation complete", "tool", string(spec.Name), "ok", ok, "durationMs", durationMs)
}

// fail builds a failed ToolResult, emitting the same audit telemetry a
// success would (step 9 applies uniformly to both outcomes).
func (r *Runtime) fail(ctx context.Context, span telemetry.Span, intent toolhub.ToolIntent, execCtx *toolhub.ExecContext, start time.Time, kind toolhub.ErrorKind, message string, details map[string]any) toolhub.ToolResult {
	result := toolhub.ToolResult{
		OK:    false,
		Error: &toolhub.ResultError{Kind: kind, Message: message, Details: details},
	}
	span.RecordError(errors.New(message))
	durationMs := time.Since(start).Milliseconds()
	spec := toolhub.ToolSpec{Name: intent.Tool}
	r.audit(ctx, span, spec, intent, execCtx, result, durationMs)
	return result
}

func (r *Runtime) resolveTimeout(spec toolhub.ToolSpec, execCtx *toolhub.ExecContext) time.Duration {
	var override time.Duration
	if execCtx.Budget != nil && execCtx.Budget.TimeoutMs != nil {
		override = time.Duration(*execCtx.Budget.TimeoutMs) * time.Millisecond
	}
	timeout := r.opts.Budget.GetTimeout(string(spec.Name), override)
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}
	return timeout
}

func (r *Runtime) truncatedToolNames() []string {
	specs := r.opts.Registry.List()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, string(s.Name))
	}
	sort.Strings(names)
	if len(names) > maxAvailableToolNames {
		names = names[:maxAvailableToolNames]
	}
	return names
}

func asArgsMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
