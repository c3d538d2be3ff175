// Package workflow provides the execution engine behind the CLI and the
// MCP server. Each operation validates its arguments, waits for an
// admission slot, runs the package manager once, and parses the output
// into records.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/pkgguard/internal/gate"
	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/metrics"
	"github.com/deixis/pkgguard/internal/parse"
	"github.com/deixis/pkgguard/internal/policy"
	"github.com/deixis/pkgguard/internal/records"
	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/runner"
)

// CommandRunner executes a validated intent.
// Implemented by runner.Runner.
type CommandRunner interface {
	Execute(ctx context.Context, intent policy.Intent) (*runner.Result, error)
}

// Engine holds shared dependencies for all operations. It is safe for
// concurrent use once built.
type Engine struct {
	Policy  *policy.Policy
	Runner  CommandRunner
	Gate    *gate.Gate
	Metrics metrics.Metrics
	// KeepPartialOutput attaches captured output to timeout errors.
	KeepPartialOutput bool
	// ScanLimit bounds the header search; zero uses the parser default.
	ScanLimit int
}

// Run is the outcome of one successful operation.
type Run struct {
	ID        string
	Operation policy.Operation
	ExitCode  int
	Duration  time.Duration
	Packages  []records.PackageRecord
	Sources   []records.SourceRecord
	// Message is the last line of output for change operations.
	Message string
}

// Record converts r into its stored form.
func (r *Run) Record() *report.RunResult {
	return &report.RunResult{
		ID:         r.ID,
		Operation:  r.Operation,
		ExitCode:   r.ExitCode,
		DurationMs: r.Duration.Milliseconds(),
		Message:    r.Message,
		Packages:   r.Packages,
		Sources:    r.Sources,
		CreatedAt:  time.Now().UTC(),
	}
}

// Run validates args for op, executes it, and interprets the output
// according to the operation.
func (e *Engine) Run(ctx context.Context, op policy.Operation, args []policy.Arg, sourceHint string) (*Run, error) {
	res, err := e.execute(ctx, op, args)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        res.RunID,
		Operation: op,
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
	}

	switch op {
	case policy.Source:
		rows, err := e.parse(op, parse.SourceTable, res)
		if err != nil {
			return nil, err
		}
		run.Sources = records.MapSources(rows)
	case policy.List, policy.Search:
		if res.ExitCode != 0 {
			// Only a no-match exit reaches here.
			run.Packages = []records.PackageRecord{}
			break
		}
		rows, err := e.parse(op, parse.PackageTable, res)
		if err != nil {
			return nil, err
		}
		run.Packages = records.Map(rows, op, sourceHint)
	default:
		run.Message = lastLine(res.Stdout)
	}
	return run, nil
}

// execute runs the intent and turns every failure into a typed error.
// A non-nil result is a completed process whose exit code is either zero
// or a no-match code for a query operation.
func (e *Engine) execute(ctx context.Context, op policy.Operation, args []policy.Arg) (*runner.Result, error) {
	m := e.metrics()

	intent, err := e.Policy.BuildIntent(op, args)
	if err != nil {
		var verr *policy.ValidationError
		var uerr *policy.UnknownParameterError
		switch {
		case errors.As(err, &verr):
			m.IncRejected(string(op), string(verr.Reason))
			logging.Info("policy", "argument rejected", "op", op, "param", verr.Param, "reason", verr.Reason, "rule", verr.Rule)
		case errors.As(err, &uerr):
			m.IncRejected(string(op), "UnknownParameter")
			logging.Info("policy", "parameter not permitted", "op", op, "param", uerr.Param)
		}
		return nil, err
	}

	if e.Gate != nil {
		if err := e.Gate.Acquire(ctx); err != nil {
			m.ObserveExecution(string(op), "canceled", 0)
			return nil, fmt.Errorf("%s: waiting for a slot: %w", op, err)
		}
	}
	res, err := e.Runner.Execute(ctx, intent)
	if e.Gate != nil {
		e.Gate.Release()
	}

	status, err := e.classify(op, res, err)
	var secs float64
	if res != nil {
		secs = res.Duration.Seconds()
	}
	m.ObserveExecution(string(op), status, secs)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) classify(op policy.Operation, res *runner.Result, err error) (string, error) {
	var spawn *runner.SpawnError
	switch {
	case errors.As(err, &spawn):
		return "spawn_error", err
	case res != nil && res.TimedOut:
		terr := &TimeoutError{Operation: op, RunID: res.RunID, After: res.Duration, Reaped: !errors.Is(err, runner.ErrNotReaped)}
		if e.KeepPartialOutput {
			terr.Partial = res
		}
		return "timeout", terr
	case res != nil && res.Canceled, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled", err
	case err != nil:
		return "error", err
	case res.ExitCode == 0:
		return "ok", nil
	case (op == policy.List || op == policy.Search) && uint32(res.ExitCode) == CodeNoPackagesFound:
		return "ok", nil
	}
	return "exit_error", newExitError(op, res)
}

func (e *Engine) parse(op policy.Operation, schema parse.Schema, res *runner.Result) ([]parse.Row, error) {
	if res.Truncated {
		logging.Info("workflow", "output truncated before parsing", "run_id", res.RunID, "op", op)
	}
	p := parse.Parser{Schema: schema, ScanLimit: e.ScanLimit}
	rows, err := p.Parse(string(res.Stdout))
	if err != nil {
		var f *parse.Failure
		if errors.As(err, &f) {
			e.metrics().IncParseFailure(string(op), string(f.Stage))
			logging.Error("workflow", "output not parsed", "run_id", res.RunID, "op", op, "stage", f.Stage)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rows, nil
}

func (e *Engine) metrics() metrics.Metrics {
	if e.Metrics == nil {
		return metrics.Noop{}
	}
	return e.Metrics
}

// lastLine returns the last non-blank line of out, with progress
// overwrites resolved.
func lastLine(out []byte) string {
	lines := strings.Split(string(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimRight(lines[i], "\r")
		if j := strings.LastIndexByte(l, '\r'); j >= 0 {
			l = l[j+1:]
		}
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}
