package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/pkgguard/internal/parse"
	"github.com/deixis/pkgguard/internal/policy"
	"github.com/deixis/pkgguard/internal/runner"
)

// Package-manager result codes with a known meaning. Codes above 0x80000000
// are HRESULTs and are shown in hex.
const (
	CodeNoPackagesFound      uint32 = 0x8A150014
	CodeNoApplicableUpdate   uint32 = 0x8A15002B
	CodeUpdateNotApplicable  uint32 = 0x8A15002C
	CodeMultipleMatches      uint32 = 0x8A150011
	CodeSourceNotFound       uint32 = 0x8A150044
	CodeInstallerFailed      uint32 = 0x8A150010
	CodePackageAgreementsNot uint32 = 0x8A150104
	CodeSourceAgreementsNot  uint32 = 0x8A15003A
)

var knownCodes = map[uint32]string{
	CodeNoPackagesFound:      "no packages found matching the input criteria",
	CodeNoApplicableUpdate:   "no applicable update found",
	CodeUpdateNotApplicable:  "the upgrade is not applicable to this system",
	CodeMultipleMatches:      "multiple packages found matching the input criteria",
	CodeSourceNotFound:       "the requested source was not found",
	CodeInstallerFailed:      "the installer reported a failure",
	CodePackageAgreementsNot: "package agreements were not accepted",
	CodeSourceAgreementsNot:  "source agreements were not accepted",
}

// ErrTimeout is wrapped by every TimeoutError.
var ErrTimeout = errors.New("execution timed out")

// TimeoutError reports that the package manager was terminated by the
// runner's timer. Partial is set only when the engine keeps partial
// output, and is meant for diagnostics.
type TimeoutError struct {
	Operation policy.Operation
	RunID     string
	After     time.Duration
	Reaped    bool
	Partial   *runner.Result
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %v after %s", e.Operation, ErrTimeout, e.After.Round(time.Millisecond))
	if !e.Reaped {
		msg += " (process not reaped)"
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ExitError reports a non-zero exit. It is a normal outcome the caller
// must interpret, not a spawn failure.
type ExitError struct {
	Operation   policy.Operation
	RunID       string
	Code        int
	Description string // known meaning of Code, if any
	Detail      string // last line of output
}

func newExitError(op policy.Operation, res *runner.Result) *ExitError {
	detail := lastLine(res.Stderr)
	if detail == "" {
		detail = lastLine(res.Stdout)
	}
	return &ExitError{
		Operation:   op,
		RunID:       res.RunID,
		Code:        res.ExitCode,
		Description: knownCodes[uint32(res.ExitCode)],
		Detail:      detail,
	}
}

// CodeString formats the exit code, in hex for HRESULT values.
func (e *ExitError) CodeString() string {
	return FormatCode(e.Code)
}

func (e *ExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: exit code %s", e.Operation, e.CodeString())
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.Detail != "" && e.Detail != e.Description {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

// FormatCode renders an exit code, in hex when it is an HRESULT.
func FormatCode(code int) string {
	if int64(code) >= 0x80000000 {
		return fmt.Sprintf("0x%08X", uint32(code))
	}
	return fmt.Sprintf("%d", code)
}

// Class groups errors by what the caller can do about them.
type Class int

const (
	ClassOther Class = iota
	// ClassValidation: an argument was rejected before anything ran.
	ClassValidation
	// ClassExecution: the process could not be run to a successful exit.
	ClassExecution
	// ClassParse: the process succeeded but its output was unreadable.
	ClassParse
)

// Classify returns the class of err.
func Classify(err error) Class {
	var (
		verr  *policy.ValidationError
		uerr  *policy.UnknownParameterError
		terr  *TimeoutError
		xerr  *ExitError
		spawn *runner.SpawnError
		perr  *parse.Failure
	)
	switch {
	case err == nil:
		return ClassOther
	case errors.As(err, &verr), errors.As(err, &uerr):
		return ClassValidation
	case errors.As(err, &terr), errors.As(err, &xerr), errors.As(err, &spawn), errors.Is(err, runner.ErrNotReaped):
		return ClassExecution
	case errors.As(err, &perr):
		return ClassParse
	}
	return ClassOther
}
