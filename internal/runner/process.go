package runner

import (
	"bytes"
	"os/exec"
	"sync"
	"time"
)

// process is the scoped handle for one child. release must run on every
// path once startProcess succeeds.
type process struct {
	cmd    *exec.Cmd
	done   chan error
	exited bool
}

func startProcess(cmd *exec.Cmd) (*process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

// stop asks the process group to terminate, then forces it, waiting up
// to grace after each step. It reports whether the process was reaped.
func (p *process) stop(grace time.Duration) (bool, error) {
	_ = terminate(p.cmd)
	if ok, err := p.wait(grace); ok {
		return true, err
	}
	_ = forceKill(p.cmd)
	if ok, err := p.wait(grace); ok {
		return true, err
	}
	return false, nil
}

func (p *process) wait(d time.Duration) (bool, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case err := <-p.done:
		p.exited = true
		return true, err
	case <-t.C:
		return false, nil
	}
}

func (p *process) release() {
	if p.exited {
		return
	}
	// Still running: a panic unwound past the wait, or the process ignored
	// both signals. Kill the group; the Wait goroutine drains done.
	_ = forceKill(p.cmd)
}

// limitWriter keeps up to limit bytes and silently discards the rest. It
// is locked so a partial snapshot can be taken while the copy goroutines
// are still writing.
type limitWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Report all bytes consumed to avoid short-write errors from io.Copy.
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) snapshot() ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Clone(w.buf.Bytes()), w.truncated
}
