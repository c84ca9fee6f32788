package toolhub

import "toolhub.dev/hub/toolerrors"

// newValidationError builds a registry-level VALIDATION error, the only
// error kind that surfaces from programmatic registration (§4.2).
func newValidationError(format string, args ...any) error {
	return toolerrors.Errorf(format, args...).WithKind(string(ErrorValidation))
}
