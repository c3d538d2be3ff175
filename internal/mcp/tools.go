package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/pkgguard/internal/records"
	"github.com/deixis/pkgguard/internal/runner"
	"github.com/deixis/pkgguard/internal/workflow"
)

type listParams struct {
	ID     string `json:"id,omitempty" jsonschema:"exact package id (e.g. Microsoft.PowerShell)"`
	Name   string `json:"name,omitempty" jsonschema:"package display name"`
	Query  string `json:"query,omitempty" jsonschema:"free-text query matched against id, name and moniker"`
	Source string `json:"source,omitempty" jsonschema:"source name (e.g. winget or msstore)"`
	Count  int    `json:"count,omitempty" jsonschema:"maximum number of results (1-9999)"`
	Exact  bool   `json:"exact,omitempty" jsonschema:"match the id, name or query exactly"`
}

func (h *handler) listHandler(ctx context.Context, req *mcp.CallToolRequest, params listParams) (*mcp.CallToolResult, any, error) {
	run, err := h.engine.List(ctx, workflow.ListQuery{
		ID:     params.ID,
		Name:   params.Name,
		Query:  params.Query,
		Source: params.Source,
		Count:  params.Count,
		Exact:  params.Exact,
	})
	if err != nil {
		return runError(err)
	}
	h.save(run)
	return textResult(formatPackages(run))
}

type searchParams struct {
	Query  string `json:"query" jsonschema:"search term"`
	Source string `json:"source,omitempty" jsonschema:"source name (e.g. winget or msstore)"`
	Count  int    `json:"count,omitempty" jsonschema:"maximum number of results (1-9999)"`
}

func (h *handler) searchHandler(ctx context.Context, req *mcp.CallToolRequest, params searchParams) (*mcp.CallToolResult, any, error) {
	run, err := h.engine.Search(ctx, workflow.SearchQuery{
		Query:  params.Query,
		Source: params.Source,
		Count:  params.Count,
	})
	if err != nil {
		return runError(err)
	}
	h.save(run)
	return textResult(formatPackages(run))
}

type upgradesParams struct {
	Source string `json:"source,omitempty" jsonschema:"source name (e.g. winget or msstore)"`
}

func (h *handler) upgradesHandler(ctx context.Context, req *mcp.CallToolRequest, params upgradesParams) (*mcp.CallToolResult, any, error) {
	run, err := h.engine.Upgrades(ctx, params.Source)
	if err != nil {
		return runError(err)
	}
	h.save(run)
	return textResult(formatPackages(run))
}

type sourcesParams struct {
	Name string `json:"name,omitempty" jsonschema:"only show the source with this name"`
}

func (h *handler) sourcesHandler(ctx context.Context, req *mcp.CallToolRequest, params sourcesParams) (*mcp.CallToolResult, any, error) {
	run, err := h.engine.Sources(ctx, params.Name)
	if err != nil {
		return runError(err)
	}
	h.save(run)
	return textResult(formatSources(run))
}

type changeParams struct {
	ID               string `json:"id" jsonschema:"exact package id (e.g. Git.Git)"`
	Source           string `json:"source,omitempty" jsonschema:"source name (e.g. winget or msstore)"`
	Version          string `json:"version,omitempty" jsonschema:"version to install (pkg_install only)"`
	Silent           bool   `json:"silent,omitempty" jsonschema:"request a silent installer run"`
	Exact            bool   `json:"exact,omitempty" jsonschema:"match the id exactly (not accepted by pkg_repair)"`
	AcceptAgreements bool   `json:"accept_agreements,omitempty" jsonschema:"accept package license agreements"`
	IncludeUnknown   bool   `json:"include_unknown,omitempty" jsonschema:"upgrade even when the installed version is unknown (pkg_upgrade only)"`
}

type changeFunc func(context.Context, workflow.PackageRef, workflow.ChangeOptions) (*workflow.Run, error)

func (h *handler) changeHandler(fn changeFunc) func(context.Context, *mcp.CallToolRequest, changeParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params changeParams) (*mcp.CallToolResult, any, error) {
		run, err := fn(ctx,
			workflow.PackageRef{ID: params.ID, Source: params.Source, Version: params.Version},
			workflow.ChangeOptions{
				Silent:           params.Silent,
				Exact:            params.Exact,
				AcceptAgreements: params.AcceptAgreements,
				IncludeUnknown:   params.IncludeUnknown,
			})
		if err != nil {
			return runError(err)
		}
		h.save(run)
		return textResult(formatChange(run))
	}
}

func formatPackages(run *workflow.Run) string {
	var b strings.Builder
	writeHeader(&b, run)

	if len(run.Packages) == 0 {
		fmt.Fprintln(&b, "No packages.")
		return b.String()
	}
	fmt.Fprintf(&b, "Packages (%d):\n", len(run.Packages))
	for _, p := range run.Packages {
		fmt.Fprintf(&b, "  %s\n", formatPackage(p))
	}
	return b.String()
}

func formatPackage(p records.PackageRecord) string {
	version := p.InstalledVersion
	switch {
	case version == "":
		version = p.AvailableVersion
	case p.AvailableVersion != "":
		version += " -> " + p.AvailableVersion
	}
	return fmt.Sprintf("%s  %q  %s  [%s]", p.ID, p.Name, version, p.Source)
}

func formatSources(run *workflow.Run) string {
	var b strings.Builder
	writeHeader(&b, run)

	if len(run.Sources) == 0 {
		fmt.Fprintln(&b, "No sources.")
		return b.String()
	}
	fmt.Fprintf(&b, "Sources (%d):\n", len(run.Sources))
	for _, s := range run.Sources {
		fmt.Fprintf(&b, "  %s  %s", s.Name, s.Argument)
		if s.Type != "" {
			fmt.Fprintf(&b, "  (%s)", s.Type)
		}
		if s.Explicit {
			fmt.Fprint(&b, "  explicit")
		}
		fmt.Fprintln(&b)
	}
	return b.String()
}

func formatChange(run *workflow.Run) string {
	var b strings.Builder
	writeHeader(&b, run)
	if run.Message != "" {
		fmt.Fprintln(&b, run.Message)
	}
	return b.String()
}

func writeHeader(b *strings.Builder, run *workflow.Run) {
	fmt.Fprintln(b, "Status: OK")
	fmt.Fprintf(b, "Run: %s\n", run.ID)
	fmt.Fprintf(b, "Operation: %s (exit %s, %s)\n", run.Operation, workflow.FormatCode(run.ExitCode), run.Duration.Round(time.Millisecond))
	fmt.Fprintln(b)
}

// describe renders err with a hint on what to do next.
func describe(err error) string {
	var terr *workflow.TimeoutError
	var spawn *runner.SpawnError
	switch workflow.Classify(err) {
	case workflow.ClassValidation:
		return fmt.Sprintf("Rejected: %v\n\nAction: do not retry the same value. Use pkg_validate to check a replacement.", err)
	case workflow.ClassParse:
		return fmt.Sprintf("Unreadable output: %v\n\nThe command ran but its output was not a table. This does not mean no packages matched.", err)
	case workflow.ClassExecution:
		switch {
		case errors.As(err, &terr):
			return fmt.Sprintf("Timed out: %v\n\nThe process was terminated. Check whether the package manager is waiting for input.", err)
		case errors.As(err, &spawn):
			return fmt.Sprintf("Not started: %v\n\nAction: check that the package manager is installed and the binary setting is correct.", err)
		}
		return fmt.Sprintf("Failed: %v", err)
	}
	return fmt.Sprintf("Error: %v", err)
}
