package runner

import (
	"errors"
	"fmt"
	"time"
)

// Result holds the outcome of one execution. It is owned by the caller
// once Execute returns.
type Result struct {
	RunID     string        // unique identifier for this run
	PID       int           // process id while it ran
	ExitCode  int           // -1 when the process was killed
	Stdout    []byte        // captured stdout (may be truncated)
	Stderr    []byte        // captured stderr (may be truncated)
	Truncated bool          // true if either stream exceeded the size cap
	TimedOut  bool          // terminated by the runner's own timer
	Canceled  bool          // terminated because the caller's context ended
	Duration  time.Duration // wall clock from start to reap
}

// DurationMs returns Duration in whole milliseconds.
func (r *Result) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// ErrNotReaped is returned, together with the partial Result, when the
// process survived both the termination signal and the forced kill.
var ErrNotReaped = errors.New("process did not exit after forced termination")

// SpawnError reports that the binary could not be launched at all. It is
// distinct from a non-zero exit, which is a normal Result.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
