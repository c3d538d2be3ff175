// Package report persists engine runs so they can be inspected later by
// run id. Results are stored as typed structs and can be filtered by
// package.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/pkgguard/internal/policy"
	"github.com/deixis/pkgguard/internal/records"
)

// ErrNotFound is returned by Load when no run has the given id.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult is the stored form of one engine run.
type RunResult struct {
	ID         string                  `json:"id"`
	Operation  policy.Operation        `json:"operation"`
	ExitCode   int                     `json:"exit_code"`
	DurationMs int64                   `json:"duration_ms"`
	Message    string                  `json:"message,omitempty"`
	Packages   []records.PackageRecord `json:"packages,omitempty"`
	Sources    []records.SourceRecord  `json:"sources,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Expect returns an error if the run's operation does not match want.
func (r *RunResult) Expect(want policy.Operation) error {
	if r.Operation != want {
		return fmt.Errorf("run %s is a %s run, not a %s run", r.ID, r.Operation, want)
	}
	return nil
}

// checkID rejects anything that is not a run id before it reaches a file
// path or a key.
func checkID(runID string) error {
	if _, err := uuid.Parse(runID); err != nil {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

// ByPackage returns the packages in result whose id matches query,
// ignoring case. A trailing ".*" matches every id under that prefix.
func ByPackage(result *RunResult, query string) []records.PackageRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	prefix, wildcard := strings.CutSuffix(query, ".*")

	var out []records.PackageRecord
	for _, p := range result.Packages {
		id := strings.ToLower(p.ID)
		switch {
		case wildcard && strings.HasPrefix(id, prefix+"."):
			out = append(out, p)
		case !wildcard && id == query:
			out = append(out, p)
		}
	}
	return out
}

// BySource returns the packages in result from src.
func BySource(result *RunResult, src records.Source) []records.PackageRecord {
	var out []records.PackageRecord
	for _, p := range result.Packages {
		if p.Source == src {
			out = append(out, p)
		}
	}
	return out
}
