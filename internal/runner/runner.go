// Package runner launches the package-manager binary with a validated
// argument vector, no shell, a wall-clock timeout, and guaranteed process
// cleanup on every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/policy"
)

const (
	DefaultTimeout   = 2 * time.Minute
	DefaultKillGrace = 2 * time.Second
	DefaultMaxOutput = 1 << 20
)

// Runner executes intents against a fixed binary. Binary comes from
// configuration; nothing in a request can change it.
type Runner struct {
	Binary    string
	Dir       string
	Timeout   time.Duration
	KillGrace time.Duration
	MaxOutput int      // bytes per stream
	Env       []string // appended to the inherited environment
}

// Execute runs intent and waits for it to finish.
//
// A context that is already done skips execution. A timeout returns a
// Result with TimedOut set and a nil error. Cancellation during the wait
// returns the partial Result together with an error wrapping ctx.Err().
// A process that cannot be reaped returns the partial Result with
// ErrNotReaped.
func (r *Runner) Execute(ctx context.Context, intent policy.Intent) (*Result, error) {
	op := intent.Operation()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s not started: %w", op, err)
	}
	if r.Binary == "" {
		return nil, &SpawnError{Binary: "<unset>", Err: errors.New("no binary configured")}
	}

	timeout := orDefault(r.Timeout, DefaultTimeout)
	grace := orDefault(r.KillGrace, DefaultKillGrace)
	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	runID := uuid.New().String()

	cmd := exec.Command(r.Binary, intent.Args()...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	// Bounds Wait when a descendant keeps the output pipes open.
	cmd.WaitDelay = grace
	setProcessGroup(cmd)

	stdout := &limitWriter{limit: maxOutput}
	stderr := &limitWriter{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	p, err := startProcess(cmd)
	if err != nil {
		logging.Error("runner", "spawn failed", "run_id", runID, "op", op, "error", err)
		return nil, &SpawnError{Binary: r.Binary, Err: err}
	}
	defer p.release()
	logging.Debug("runner", "process started", "run_id", runID, "op", op, "pid", cmd.Process.Pid, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	res := &Result{RunID: runID, PID: cmd.Process.Pid, ExitCode: -1}
	var waitErr error
	reaped := true
	select {
	case waitErr = <-p.done:
		p.exited = true
	case <-timer.C:
		res.TimedOut = true
		reaped, waitErr = p.stop(grace)
	case <-ctx.Done():
		res.Canceled = true
		reaped, waitErr = p.stop(grace)
	}
	res.Duration = time.Since(start)
	res.Stdout, res.Truncated = stdout.snapshot()
	var errTrunc bool
	res.Stderr, errTrunc = stderr.snapshot()
	res.Truncated = res.Truncated || errTrunc

	if reaped {
		res.ExitCode = exitCode(cmd, waitErr)
	}

	logging.Info("runner", "process finished",
		"run_id", runID,
		"op", op,
		"exit_code", res.ExitCode,
		"duration_ms", res.DurationMs(),
		"timed_out", res.TimedOut,
		"canceled", res.Canceled,
	)

	switch {
	case !reaped:
		logging.Error("runner", "process not reaped", "run_id", runID, "pid", res.PID)
		return res, fmt.Errorf("%s (pid %d): %w", op, res.PID, ErrNotReaped)
	case res.Canceled:
		return res, fmt.Errorf("%s canceled: %w", op, ctx.Err())
	}
	return res, nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr == nil {
		return 0
	}
	return -1
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
