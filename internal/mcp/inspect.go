package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/workflow"
)

type inspectParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a previous pkgguard tool result"`
	Package string `json:"package,omitempty" jsonschema:"package id (e.g. Git.Git) or id prefix (e.g. Microsoft.*) to filter by"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if h.store == nil {
		return errorResult("run history is disabled")
	}

	result, err := h.store.Load(params.RunID)
	if errors.Is(err, report.ErrNotFound) {
		return errorResult(fmt.Sprintf("No run %s. Runs expire; re-run the original tool.", params.RunID))
	}
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	return textResult(formatInspectOutput(result, params.Package))
}

func formatInspectOutput(result *report.RunResult, pkg string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s)\n", result.ID, result.Operation)
	fmt.Fprintf(&b, "At: %s, exit %s, %dms\n", result.CreatedAt.Format("2006-01-02 15:04:05Z07:00"), workflow.FormatCode(result.ExitCode), result.DurationMs)
	fmt.Fprintln(&b)

	if result.Message != "" {
		fmt.Fprintln(&b, result.Message)
	}

	packages := result.Packages
	if pkg != "" {
		packages = report.ByPackage(result, pkg)
		if len(packages) == 0 {
			fmt.Fprintf(&b, "No packages matching %s in this run.\n", pkg)
			return b.String()
		}
	}
	if len(packages) > 0 {
		fmt.Fprintf(&b, "Packages (%d):\n", len(packages))
		for _, p := range packages {
			fmt.Fprintf(&b, "  %s\n", formatPackage(p))
		}
	}
	if len(result.Sources) > 0 {
		fmt.Fprintf(&b, "Sources (%d):\n", len(result.Sources))
		for _, s := range result.Sources {
			fmt.Fprintf(&b, "  %s  %s\n", s.Name, s.Argument)
		}
	}
	return b.String()
}
