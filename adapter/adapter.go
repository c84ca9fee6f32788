// Package adapter defines the common contract every tool-kind adapter
// implements (§4.3): a normalized invocation interface plus the
// adapter-provided evidence channel, an explicit small sum type rather than
// duck-typed probing (§9 design note). Kind-specific adapters live in
// subpackages (core, localfn, rpctool, workflow, imagepipeline, skill).
package adapter

import (
	"context"

	"toolhub.dev/hub"
)

// Outcome is what an Adapter's Invoke returns on success: the result value
// to validate against outputSchema, any evidence the adapter wants merged
// into the PTC Runtime's built evidence, and an optional adapter-native raw
// response preserved on ToolResult.Raw.
type Outcome struct {
	Result   any
	Evidence []toolhub.Evidence
	Raw      any
}

// Adapter is the interface every tool-kind adapter implements. Invoke may
// return an error; the PTC Runtime catches and classifies it. Adapters must
// not bypass the pipeline, log raw secrets, or mutate the Registry.
type Adapter interface {
	// Kind reports the ToolKind this adapter serves.
	Kind() toolhub.ToolKind
	// ListTools reports the specs this adapter's back-end currently exposes,
	// for adapters with a discoverable back-end (rpc-tool, workflow). Most
	// adapters return (nil, nil).
	ListTools(ctx context.Context) ([]toolhub.ToolSpec, error)
	// Invoke executes spec with enrichedArgs under execCtx's authority.
	Invoke(ctx context.Context, spec *toolhub.ToolSpec, args map[string]any, execCtx *toolhub.ExecContext) (Outcome, error)
}
