// Package workflow's Temporal engine backs the embedded workflow adapter in
// production, grounded on the donor's runtime/agent/engine/temporal package:
// a durable client+worker pair driving one generic workflow type that
// dispatches to the activity registered for a tool's Definition, the same
// "generated agent code targets either back-end unmodified" shape the donor
// engine abstraction provides. Configuration is read from the documented
// environment variables (§9: TEMPORAL_HOST_PORT, TEMPORAL_NAMESPACE,
// TEMPORAL_TASK_QUEUE) rather than a process-wide singleton.
package workflow

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	tmpopentelemetry "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// toolWorkflowType is the single Temporal workflow type every tool
// invocation runs under; Definition.ID/Name select which activity handler
// to dispatch to, the way a generic interpreter loop selects opcodes rather
// than Temporal registering one workflow type per tool.
const toolWorkflowType = "toolhub.ToolWorkflow"

// toolActivityType is the activity every ToolWorkflow run delegates to.
const toolActivityType = "toolhub.ExecuteToolActivity"

// ActivityHandler executes one workflow Definition's node graph against
// input, returning the workflow's result. Callers register their own
// node-interpretation logic; TemporalEngine treats workflow.json's Nodes as
// opaque engine-defined payload (§4.4), consistent with the concrete
// back-end node-execution semantics being an external collaborator (§1).
type ActivityHandler func(ctx context.Context, def Definition, input any) (any, error)

// toolWorkflowInput is the payload passed from StartWorkflow into the
// generic Temporal workflow.
type toolWorkflowInput struct {
	Definition Definition
	Input      any
}

// TemporalEngine implements Engine (and Importer, as a no-op: Temporal has
// no workflow-registry API to import into, so Import just echoes the
// Definition's ID back as the internal id) against a real Temporal server.
type TemporalEngine struct {
	hostPort  string
	namespace string
	taskQueue string
	handler   ActivityHandler

	startOnce sync.Once
	startErr  error
	client    client.Client
	worker    worker.Worker
}

// TemporalOptions configures a TemporalEngine. Zero-valued fields fall back
// to TEMPORAL_HOST_PORT, TEMPORAL_NAMESPACE, and TEMPORAL_TASK_QUEUE.
type TemporalOptions struct {
	HostPort  string
	Namespace string
	TaskQueue string
	// Handler executes a workflow Definition's node graph. Required.
	Handler ActivityHandler
}

// NewTemporalEngine returns a TemporalEngine that connects and starts its
// worker lazily on first Start call.
func NewTemporalEngine(opts TemporalOptions) *TemporalEngine {
	hostPort := opts.HostPort
	if hostPort == "" {
		hostPort = envOr("TEMPORAL_HOST_PORT", "localhost:7233")
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = envOr("TEMPORAL_NAMESPACE", "default")
	}
	taskQueue := opts.TaskQueue
	if taskQueue == "" {
		taskQueue = envOr("TEMPORAL_TASK_QUEUE", "toolhub-workflows")
	}
	return &TemporalEngine{hostPort: hostPort, namespace: namespace, taskQueue: taskQueue, handler: opts.Handler}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Start dials the Temporal server, registers the generic workflow/activity
// pair, and starts the worker in the background. Safe to call concurrently;
// only the first call does any work (via Embedded's own startOnce, this is
// additionally idempotent on its own so TemporalEngine can be reused
// outside the Embedded adapter).
func (e *TemporalEngine) Start(context.Context) error {
	e.startOnce.Do(func() {
		tracingInterceptor, err := tmpopentelemetry.NewTracingInterceptor(tmpopentelemetry.TracerOptions{})
		if err != nil {
			e.startErr = fmt.Errorf("workflow: temporal otel interceptor: %w", err)
			return
		}
		c, err := client.Dial(client.Options{
			HostPort:     e.hostPort,
			Namespace:    e.namespace,
			Interceptors: []interceptor.ClientInterceptor{tracingInterceptor},
		})
		if err != nil {
			e.startErr = fmt.Errorf("workflow: temporal dial: %w", err)
			return
		}
		e.client = c

		w := worker.New(c, e.taskQueue, worker.Options{})
		w.RegisterWorkflowWithOptions(e.runToolWorkflow, workflow.RegisterOptions{Name: toolWorkflowType})
		w.RegisterActivityWithOptions(e.runActivity, activity.RegisterOptions{Name: toolActivityType})
		e.worker = w
		go func() {
			_ = w.Run(worker.InterruptCh())
		}()
	})
	return e.startErr
}

// runToolWorkflow is the single generic Temporal workflow every tool
// invocation executes under.
func (e *TemporalEngine) runToolWorkflow(ctx workflow.Context, in toolWorkflowInput) (any, error) {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 5 * time.Minute}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var result any
	err := workflow.ExecuteActivity(ctx, toolActivityType, in).Get(ctx, &result)
	return result, err
}

// runActivity delegates to the configured ActivityHandler outside workflow
// context, where ordinary I/O is permitted.
func (e *TemporalEngine) runActivity(ctx context.Context, in toolWorkflowInput) (any, error) {
	if e.handler == nil {
		return nil, fmt.Errorf("workflow: temporal engine has no activity handler configured")
	}
	return e.handler(ctx, in.Definition, in.Input)
}

// Stop shuts down the worker and closes the client connection. Safe to call
// even if Start was never called or failed.
func (e *TemporalEngine) Stop() error {
	if e.worker != nil {
		e.worker.Stop()
	}
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// Import implements Importer as a no-op: Temporal has no server-side
// workflow-definition registry to publish into, so the Definition's own ID
// (falling back to its Name) is the internal id Embedded caches.
func (e *TemporalEngine) Import(_ context.Context, def Definition) (string, error) {
	if def.ID != "" {
		return def.ID, nil
	}
	return def.Name, nil
}

// StartWorkflow implements Engine.
func (e *TemporalEngine) StartWorkflow(ctx context.Context, req StartRequest) (Handle, error) {
	opts := client.StartWorkflowOptions{
		ID:                       req.ID,
		TaskQueue:                e.taskQueue,
		WorkflowExecutionTimeout: req.Timeout,
	}
	run, err := e.client.ExecuteWorkflow(ctx, opts, toolWorkflowType, toolWorkflowInput{
		Definition: Definition{ID: req.Workflow, Name: req.Workflow},
		Input:      req.Input,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow: temporal execute: %w", err)
	}
	return &temporalHandle{run: run}, nil
}

type temporalHandle struct {
	run client.WorkflowRun
}

func (h *temporalHandle) ID() string { return h.run.GetID() }

func (h *temporalHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

// Status reports a previously started workflow's execution status as
// Temporal's own enum name (e.g. "WORKFLOW_EXECUTION_STATUS_RUNNING"), for
// callers that want to poll a long-running workflow tool without blocking on
// Wait. Returns an error if the engine has not been started yet.
func (e *TemporalEngine) Status(ctx context.Context, workflowID string) (string, error) {
	if e.client == nil {
		return "", fmt.Errorf("workflow: temporal engine not started")
	}
	desc, err := e.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return "", fmt.Errorf("workflow: describe execution: %w", err)
	}
	status := enumspb.WorkflowExecutionStatus_WORKFLOW_EXECUTION_STATUS_UNSPECIFIED
	if desc.GetWorkflowExecutionInfo() != nil {
		status = desc.GetWorkflowExecutionInfo().GetStatus()
	}
	return status.String(), nil
}
