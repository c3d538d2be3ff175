package policy

import (
	"fmt"

	"github.com/deixis/pkgguard/internal/validate"
)

// Policy-level reasons, alongside the validator's own.
const (
	MissingValue    validate.Reason = "MissingValue"
	UnexpectedValue validate.Reason = "UnexpectedValue"
	FormatMismatch  validate.Reason = "FormatMismatch"
	// FlagLikeValue is a value that would be read as an option by the
	// package manager.
	FlagLikeValue   validate.Reason = "FlagLikeValue"
)

// ValidationError reports an argument that was rejected. It names the
// parameter and the reason, never the offending value.
type ValidationError struct {
	Operation Operation
	Param     string
	Reason    validate.Reason
	Rule      string
}

func (e *ValidationError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: invalid %s: %s (%s)", e.Operation, e.Param, e.Reason, e.Rule)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Operation, e.Param, e.Reason)
}

// UnknownParameterError reports a flag, positional value, or operation
// that the policy does not permit.
type UnknownParameterError struct {
	Operation Operation
	Param     string
}

func (e *UnknownParameterError) Error() string {
	if e.Param == string(e.Operation) {
		return fmt.Sprintf("unknown operation %q", e.Operation)
	}
	return fmt.Sprintf("%s: parameter %s is not permitted", e.Operation, e.Param)
}
