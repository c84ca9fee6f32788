package ptc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"toolhub.dev/hub"
	"toolhub.dev/hub/adapter"
	"toolhub.dev/hub/adapter/workflow"
	"toolhub.dev/hub/budget"
	"toolhub.dev/hub/policy"
	"toolhub.dev/hub/registry"
	"toolhub.dev/hub/retry"
	"toolhub.dev/hub/schema"
	"toolhub.dev/hub/toolerrors"
)

// fakeAdapter is a minimal adapter.Adapter stand-in so the pipeline can be
// exercised without a real core/local-fn/rpc-tool backend.
type fakeAdapter struct {
	kind   toolhub.ToolKind
	invoke func(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error)
	calls  int
}

func (f *fakeAdapter) Kind() toolhub.ToolKind { return f.kind }

func (f *fakeAdapter) ListTools(context.Context) ([]toolhub.ToolSpec, error) { return nil, nil }

func (f *fakeAdapter) Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (adapter.Outcome, error) {
	f.calls++
	return f.invoke(ctx, spec, args, execCtx)
}

func echoSpec(name string) toolhub.ToolSpec {
	return toolhub.ToolSpec{
		Name:    toolhub.Name(name),
		Version: "1.0.0",
		Kind:    toolhub.ToolKindCore,
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"msg"},
			"properties": map[string]any{
				"msg": map[string]any{"type": "string"},
			},
		},
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"echoed"},
			"properties": map[string]any{
				"echoed": map[string]any{"type": "string"},
			},
		},
	}
}

func newRuntime(t *testing.T, spec toolhub.ToolSpec, ad adapter.Adapter, policyOpts policy.Options) *Runtime {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(spec))

	adapters := NewAdapters(map[toolhub.ToolKind]adapter.Adapter{spec.Kind: ad})
	return New(Options{
		Registry:  reg,
		Validator: schema.New(),
		Policy:    policy.New(policyOpts),
		Budget:    budget.New(budget.Config{DefaultTimeout: time.Second}),
		Adapters:  adapters,
	})
}

func TestInvokeSuccess(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{})
	require.True(t, result.OK)
	require.Nil(t, result.Error)
	out, ok := result.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hi", out["echoed"])
	require.NotEmpty(t, result.Evidence)
}

func TestInvokeToolNotFound(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/missing"}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorToolNotFound, result.Error.Kind)
	require.Contains(t, result.Error.Details["availableTools"], "demo/echo")
}

func TestInvokeInputSchemaInvalid(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{}}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorInputSchemaInvalid, result.Error.Kind)
	require.NotEmpty(t, result.Error.Details["errors"])
	require.Zero(t, ad.calls)
}

func TestInvokePolicyDenied(t *testing.T) {
	spec := echoSpec("demo/echo")
	spec.Capabilities = []toolhub.Capability{toolhub.CapabilityNetwork}
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorPolicyDenied, result.Error.Kind)
	require.Equal(t, []string{string(toolhub.CapabilityNetwork)}, result.Error.Details["missingCapabilities"])
	require.Zero(t, ad.calls)
}

func TestInvokePolicyDeniedPathEscapeReportsPathOutsideSandbox(t *testing.T) {
	s := echoSpec("demo/readfile")
	s.InputSchema = map[string]any{
		"type":     "object",
		"required": []any{"path"},
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, _ map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": "unreachable"}}, nil
	}}
	rt := newRuntime(t, s, ad, policy.Options{SandboxRoots: []string{t.TempDir()}})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/readfile", Args: map[string]any{"path": "../../../etc/passwd"}}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorPathOutsideSandbox, result.Error.Kind)
	require.Zero(t, ad.calls)
}

func TestInvokePolicyDeniedURLReportsHTTPDisallowedHost(t *testing.T) {
	s := echoSpec("demo/fetch")
	s.Capabilities = []toolhub.Capability{toolhub.CapabilityNetwork}
	s.InputSchema = map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, _ map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": "unreachable"}}, nil
	}}
	rt := newRuntime(t, s, ad, policy.Options{URLDenyList: []string{`internal\.corp`}})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/fetch", Args: map[string]any{"url": "https://internal.corp/meta"}}, &toolhub.ExecContext{
		Permissions: []toolhub.Capability{toolhub.CapabilityNetwork},
	})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorHTTPDisallowedHost, result.Error.Kind)
	require.Zero(t, ad.calls)
}

func TestInvokeDryRunSkipsExecution(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{DryRun: true})
	require.True(t, result.OK)
	require.Zero(t, ad.calls)
	out, ok := result.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, out["dryRun"])
	require.Equal(t, "demo/echo", out["tool"])
}

func TestInvokeRetriesRetryableThenSucceeds(t *testing.T) {
	spec := echoSpec("demo/echo")
	attempts := 0
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		attempts++
		if attempts < 2 {
			return adapter.Outcome{}, toolerrors.Errorf("transient").WithKind(string(toolhub.ErrorUpstream))
		}
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	reg := registry.New()
	require.NoError(t, reg.Register(spec))
	rt := New(Options{
		Registry:    reg,
		Validator:   schema.New(),
		Policy:      policy.New(policy.Options{}),
		Budget:      budget.New(budget.Config{DefaultTimeout: time.Second}),
		Adapters:    NewAdapters(map[toolhub.ToolKind]adapter.Adapter{toolhub.ToolKindCore: ad}),
		RetryPolicy: retryPolicyForTest(),
	})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{})
	require.True(t, result.OK)
	require.Equal(t, 2, attempts)
}

func TestInvokeNonRetryableErrorStopsImmediately(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, _ map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{}, toolerrors.Errorf("outside sandbox").WithKind(string(toolhub.ErrorPathOutsideSandbox))
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorPathOutsideSandbox, result.Error.Kind)
	require.Equal(t, 1, ad.calls)
}

func TestInvokeOutputSchemaInvalid(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, _ map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"wrongField": 1}}, nil
	}}
	rt := newRuntime(t, spec, ad, policy.Options{})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}, &toolhub.ExecContext{})
	require.False(t, result.OK)
	require.Equal(t, toolhub.ErrorOutputSchemaInvalid, result.Error.Kind)
}

func TestInvokeBudgetExceeded(t *testing.T) {
	spec := echoSpec("demo/echo")
	ad := &fakeAdapter{kind: toolhub.ToolKindCore, invoke: func(_ context.Context, _ *toolhub.ToolSpec, args map[string]any, _ *toolhub.ExecContext) (adapter.Outcome, error) {
		return adapter.Outcome{Result: map[string]any{"echoed": args["msg"]}}, nil
	}}
	reg := registry.New()
	require.NoError(t, reg.Register(spec))
	rt := New(Options{
		Registry:  reg,
		Validator: schema.New(),
		Policy:    policy.New(policy.Options{}),
		Budget:    budget.New(budget.Config{DefaultTimeout: time.Second, DefaultRatePerSec: 1, DefaultBurst: 1}),
		Adapters:  NewAdapters(map[toolhub.ToolKind]adapter.Adapter{toolhub.ToolKindCore: ad}),
	})

	ctx := context.Background()
	intent := toolhub.ToolIntent{Tool: "demo/echo", Args: map[string]any{"msg": "hi"}}
	first := rt.Invoke(ctx, intent, &toolhub.ExecContext{})
	require.True(t, first.OK)

	second := rt.Invoke(ctx, intent, &toolhub.ExecContext{})
	require.False(t, second.OK)
	require.Equal(t, toolhub.ErrorBudgetExceeded, second.Error.Kind)
}

// idCapturingEngine wraps an InMemEngine to record the workflow ID each
// StartRequest arrives with, so the test can assert the caller-supplied
// idempotency key made it all the way from ToolIntent to the engine.
type idCapturingEngine struct {
	*workflow.InMemEngine
	startedID string
}

func (e *idCapturingEngine) StartWorkflow(ctx context.Context, req workflow.StartRequest) (workflow.Handle, error) {
	e.startedID = req.ID
	return e.InMemEngine.StartWorkflow(ctx, req)
}

func TestInvokePropagatesIdempotencyKeyToWorkflowAdapter(t *testing.T) {
	inner := workflow.NewInMemEngine()
	inner.Register("demo/wf", func(ctx context.Context, input any) (any, error) {
		return map[string]any{"echoed": input.(map[string]any)["msg"]}, nil
	})
	engine := &idCapturingEngine{InMemEngine: inner}
	ad := workflow.NewEmbedded(engine)

	s := echoSpec("demo/wf")
	s.Kind = toolhub.ToolKindWorkflow
	s.Impl = workflow.Definition{Name: "demo/wf"}

	reg := registry.New()
	require.NoError(t, reg.Register(s))
	rt := New(Options{
		Registry:  reg,
		Validator: schema.New(),
		Policy:    policy.New(policy.Options{}),
		Budget:    budget.New(budget.Config{DefaultTimeout: time.Second}),
		Adapters:  NewAdapters(map[toolhub.ToolKind]adapter.Adapter{toolhub.ToolKindWorkflow: ad}),
	})

	result := rt.Invoke(context.Background(), toolhub.ToolIntent{
		Tool: "demo/wf", Args: map[string]any{"msg": "hi"}, IdempotencyKey: "caller-supplied",
	}, &toolhub.ExecContext{RequestID: "r1", TaskID: "t1"})
	require.True(t, result.OK)
	require.Equal(t, "caller-supplied", engine.startedID)
}

func retryPolicyForTest() retry.Policy {
	return retry.Policy{BaseDelay: time.Millisecond, Factor: 2, MaxDelay: 5 * time.Millisecond, Jitter: 0, MaxRetries: 3}
}
