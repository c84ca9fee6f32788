// Package toolerrors provides the structured error type used across the Hub
// before classification into a ToolResult's error.kind. A ToolError preserves
// a message and causal chain while still implementing the standard error
// interface, so errors.Is/As work across adapter boundaries and retries.
package toolerrors

import (
	"errors"
	"fmt"
)

// ToolError represents a structured failure that preserves message and
// causal context. Errors may be nested via Cause to retain diagnostics
// across retries and adapter hops. Kind, when set, names the ErrorKind the
// PTC Runtime should classify this failure as; a zero Kind lets the runtime
// apply its own default classification (typically UPSTREAM_ERROR).
type ToolError struct {
	Message string
	Kind    string
	Cause   *ToolError
}

// New constructs a ToolError with the provided message and no kind.
func New(message string) *ToolError {
	if message == "" {
		message = "tool error"
	}
	return &ToolError{Message: message}
}

// WithKind tags e with a classification kind and returns e for chaining.
func (e *ToolError) WithKind(kind string) *ToolError {
	e.Kind = kind
	return e
}

// NewWithCause constructs a ToolError that wraps an underlying error,
// converting the cause into a ToolError chain so the kind and message
// survive across errors.Unwrap hops.
func NewWithCause(message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{
		Message: message,
		Cause:   FromError(cause),
	}
}

// FromError converts an arbitrary error into a ToolError chain, reusing an
// existing ToolError found anywhere in the chain instead of re-wrapping it.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{
		Message: err.Error(),
		Cause:   FromError(errors.Unwrap(err)),
	}
}

// Errorf formats according to a format specifier and returns it as a ToolError.
func Errorf(format string, args ...any) *ToolError {
	return New(fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying tool error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf walks err's ToolError chain for the first non-empty Kind, returning
// "" if none is found.
func KindOf(err error) string {
	for te := FromError(err); te != nil; te = te.Cause {
		if te.Kind != "" {
			return te.Kind
		}
	}
	return ""
}
