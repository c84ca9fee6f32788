package toolhub

// ToolKind is the closed set of adapter variants. Every ToolSpec carries
// exactly one, and the ToolHub dispatches to adapters via a kind->adapter
// map built once at construction time rather than open-ended inheritance.
type ToolKind string

// ToolKind values.
const (
	ToolKindCore          ToolKind = "core"
	ToolKindLocalFn       ToolKind = "local-fn"
	ToolKindRPCTool       ToolKind = "rpc-tool"
	ToolKindWorkflow      ToolKind = "workflow"
	ToolKindImagePipeline ToolKind = "image-pipeline"
	ToolKindSkill         ToolKind = "skill"
)

// Valid reports whether k is one of the closed set of known tool kinds.
func (k ToolKind) Valid() bool {
	switch k {
	case ToolKindCore, ToolKindLocalFn, ToolKindRPCTool, ToolKindWorkflow, ToolKindImagePipeline, ToolKindSkill:
		return true
	default:
		return false
	}
}

// ParseToolKind parses s into a ToolKind, returning ok=false for unknown
// values.
func ParseToolKind(s string) (kind ToolKind, ok bool) {
	kind = ToolKind(s)
	return kind, kind.Valid()
}

// EvidenceType is the closed set of evidence record kinds.
type EvidenceType string

// EvidenceType values.
const (
	EvidenceTypeTool   EvidenceType = "tool"
	EvidenceTypeFile   EvidenceType = "file"
	EvidenceTypeURL    EvidenceType = "url"
	EvidenceTypeText   EvidenceType = "text"
	EvidenceTypeMetric EvidenceType = "metric"
)

// JobStatus is a Job's state machine position. See JobStatus.CanTransitionTo
// for the allowed-edge set.
type JobStatus string

// JobStatus values.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether s is an absorbing state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the (s, next) pair is one of the allowed
// edges: queued->running, queued->canceled, running->completed,
// running->failed, running->canceled.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusCanceled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCanceled
	default:
		return false
	}
}

// EventType is the closed set of append-only Event Log variants.
type EventType string

// EventType values.
const (
	EventToolCalled   EventType = "TOOL_CALLED"
	EventToolResult   EventType = "TOOL_RESULT"
	EventPolicyDenied EventType = "POLICY_DENIED"
	EventRetry        EventType = "RETRY"
	EventJobSubmitted EventType = "JOB_SUBMITTED"
	EventJobCompleted EventType = "JOB_COMPLETED"
	EventJobFailed    EventType = "JOB_FAILED"
)

// ErrorKind is the closed taxonomy carried by ToolResult.Error.Kind.
type ErrorKind string

// ErrorKind values.
const (
	ErrorToolNotFound        ErrorKind = "TOOL_NOT_FOUND"
	ErrorInputSchemaInvalid  ErrorKind = "INPUT_SCHEMA_INVALID"
	ErrorOutputSchemaInvalid ErrorKind = "OUTPUT_SCHEMA_INVALID"
	ErrorPolicyDenied        ErrorKind = "POLICY_DENIED"
	ErrorBudgetExceeded      ErrorKind = "BUDGET_EXCEEDED"
	ErrorTimeout             ErrorKind = "TIMEOUT"
	ErrorPathOutsideSandbox  ErrorKind = "PATH_OUTSIDE_SANDBOX"
	ErrorFileTooLarge        ErrorKind = "FILE_TOO_LARGE"
	ErrorHTTPDisallowedHost  ErrorKind = "HTTP_DISALLOWED_HOST"
	ErrorHTTPTooLarge        ErrorKind = "HTTP_TOO_LARGE"
	ErrorHTTPTimeout         ErrorKind = "HTTP_TIMEOUT"
	ErrorUpstream            ErrorKind = "UPSTREAM_ERROR"
	ErrorValidation          ErrorKind = "VALIDATION"
)

// nonRetryable is the set of error kinds the Retry Engine never retries.
var nonRetryable = map[ErrorKind]struct{}{
	ErrorToolNotFound:        {},
	ErrorInputSchemaInvalid:  {},
	ErrorPolicyDenied:        {},
	ErrorOutputSchemaInvalid: {},
	ErrorPathOutsideSandbox:  {},
	ErrorFileTooLarge:        {},
	ErrorHTTPDisallowedHost:  {},
	ErrorHTTPTooLarge:        {},
}

// Retryable reports whether the Retry Engine should attempt k more than once.
func (k ErrorKind) Retryable() bool {
	_, blocked := nonRetryable[k]
	return !blocked
}
