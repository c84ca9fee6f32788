// Package toolhub defines the data model shared by every component of the
// Tool Execution Hub: ToolSpec, ExecContext, ToolIntent, ToolResult,
// Evidence, Job, Event, and SkillDefinition.
package toolhub

import "time"

// CostHints are optional latency/async hints a tool advertises about itself.
type CostHints struct {
	P50LatencyMs *int64 `json:"p50LatencyMs,omitempty"`
	P95LatencyMs *int64 `json:"p95LatencyMs,omitempty"`
	IsAsync      *bool  `json:"isAsync,omitempty"`
}

// ToolSpec is the immutable declaration of a tool. The Registry is the
// exclusive owner of ToolSpec instances by name; adapters look tools up by
// name rather than holding a pointer.
type ToolSpec struct {
	Name         Name           `json:"name"`
	Version      string         `json:"version"`
	Kind         ToolKind       `json:"kind"`
	Description  string         `json:"description"`
	Tags         []string       `json:"tags,omitempty"`
	Capabilities []Capability   `json:"capabilities,omitempty"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
	CostHints    *CostHints     `json:"costHints,omitempty"`
	Endpoint     string         `json:"endpoint,omitempty"`
	ResourceID   string         `json:"resourceId,omitempty"`

	// Impl is a kind-private payload: a local function reference, workflow
	// definition, skill bundle, or connection config. Its concrete type is
	// interpreted only by the adapter matching Kind.
	Impl any `json:"-"`
}

// Validate checks that name, version, a recognized kind, and both schemas are
// present. Capabilities are not checked: a nil or empty slice is accepted.
func (s *ToolSpec) Validate() error {
	if s.Name == "" {
		return newValidationError("name is required")
	}
	if s.Version == "" {
		return newValidationError("version is required")
	}
	if !s.Kind.Valid() {
		return newValidationError("kind %q is not a recognized tool kind", s.Kind)
	}
	if s.InputSchema == nil {
		return newValidationError("inputSchema is required")
	}
	if s.OutputSchema == nil {
		return newValidationError("outputSchema is required")
	}
	return nil
}

// Budget bounds a single invocation.
type Budget struct {
	TimeoutMs    *int64 `json:"timeoutMs,omitempty"`
	MaxRetries   *int   `json:"maxRetries,omitempty"`
	MaxToolCalls *int   `json:"maxToolCalls,omitempty"`
}

// ExecContext carries the per-call authority and budget threaded through the
// pipeline.
type ExecContext struct {
	RequestID   string       `json:"requestId"`
	TaskID      string       `json:"taskId"`
	TraceID     string       `json:"traceId,omitempty"`
	UserID      string       `json:"userId,omitempty"`
	Permissions []Capability `json:"permissions,omitempty"`
	Budget      *Budget      `json:"budget,omitempty"`
	DryRun      bool         `json:"dryRun,omitempty"`
}

// HasPermission reports whether ctx grants c.
func (c *ExecContext) HasPermission(cap Capability) bool {
	for _, p := range c.Permissions {
		if p == cap {
			return true
		}
	}
	return false
}

// ToolIntent is the caller's request to invoke a tool.
type ToolIntent struct {
	Tool           Name   `json:"tool"`
	Args           any    `json:"args"`
	Purpose        string `json:"purpose"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// ResultError is the tagged error shape carried in a failed ToolResult.
type ResultError struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToolResult is what the PTC Runtime returns for every invocation. The
// runtime never raises; every outcome, success or failure, is a ToolResult.
type ToolResult struct {
	OK       bool         `json:"ok"`
	Result   any          `json:"result,omitempty"`
	Evidence []Evidence   `json:"evidence,omitempty"`
	Error    *ResultError `json:"error,omitempty"`
	Raw      any          `json:"raw,omitempty"`
}

// Evidence is one record of something that happened or was produced during
// an invocation.
type Evidence struct {
	Type      EvidenceType `json:"type"`
	Ref       string       `json:"ref"`
	Summary   string       `json:"summary"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Job is a unit tracked by the Async Job Manager.
type Job struct {
	JobID     string         `json:"jobId"`
	ToolName  Name           `json:"toolName"`
	RequestID string         `json:"requestId"`
	TaskID    string         `json:"taskId"`
	Status    JobStatus      `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Result    any            `json:"result,omitempty"`
	Error     *ResultError   `json:"error,omitempty"`
}

// Event is an append-only record in the Event Log, tagged by Type with
// variant-specific fields carried in Fields.
type Event struct {
	Seq       uint64         `json:"seq" bson:"seq"`
	Type      EventType      `json:"type" bson:"type"`
	RequestID string         `json:"requestId" bson:"requestId"`
	TaskID    string         `json:"taskId" bson:"taskId"`
	ToolName  Name           `json:"toolName,omitempty" bson:"toolName,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	TraceID   string         `json:"traceId,omitempty" bson:"traceId,omitempty"`
	Fields    map[string]any `json:"fields,omitempty" bson:"fields,omitempty"`
}

// ResourceType is the closed set of SkillDefinition resource kinds.
type ResourceType string

// ResourceType values.
const (
	ResourceInstructions ResourceType = "instructions"
	ResourceCode         ResourceType = "code"
	ResourceData         ResourceType = "data"
)

// SkillFrontmatter is the parsed header block of a SKILL.md file.
type SkillFrontmatter struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	License       string            `json:"license,omitempty"`
	Compatibility string            `json:"compatibility,omitempty"`
	AllowedTools  []string          `json:"allowedTools,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SkillResource is one file discovered alongside a SKILL.md.
type SkillResource struct {
	RelativePath string       `json:"relativePath"`
	AbsolutePath string       `json:"absolutePath"`
	Extension    string       `json:"extension"`
	Type         ResourceType `json:"type"`
}

// SkillDefinition is the parsed form of a skill bundle.
type SkillDefinition struct {
	Frontmatter  SkillFrontmatter `json:"frontmatter"`
	Instructions string           `json:"instructions"`
	Resources    []SkillResource  `json:"resources,omitempty"`
	DirPath      string           `json:"dirPath"`
	ManifestPath string           `json:"manifestPath"`
}
