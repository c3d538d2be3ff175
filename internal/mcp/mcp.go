// Package mcp provides the pkgguard MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	_ "embed"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/pkgguard"
	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *workflow.Engine
	store  report.Store
}

// NewServer creates an MCP server with all pkgguard tools registered.
// Every run is saved to store so pkg_inspect can reload it.
func NewServer(engine *workflow.Engine, store report.Store) *mcp.Server {
	h := &handler{engine: engine, store: store}

	s := mcp.NewServer(&mcp.Implementation{Name: "pkgguard", Version: pkgguard.Version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_list",
		Description: "List installed packages, optionally filtered by id, name, query or source. Read-only.",
	}, h.listHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_search",
		Description: "Search the configured sources for packages matching a query. Read-only.",
	}, h.searchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_upgrades",
		Description: "List installed packages that have an update available. Read-only.",
	}, h.upgradesHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "pkg_upgrade",
		Description: `Upgrade one package by exact id.

Changes the machine. Use the id returned by pkg_upgrades or pkg_list.`,
	}, h.changeHandler(h.engine.Upgrade))

	mcp.AddTool(s, &mcp.Tool{
		Name: "pkg_install",
		Description: `Install one package by exact id, optionally at a given version.

Changes the machine. Use the id returned by pkg_search.`,
	}, h.changeHandler(h.engine.Install))

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_uninstall",
		Description: "Uninstall one package by exact id. Changes the machine.",
	}, h.changeHandler(h.engine.Uninstall))

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_repair",
		Description: "Repair one installed package by exact id. Changes the machine.",
	}, h.changeHandler(h.engine.Repair))

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pkg_sources",
		Description: "List the configured package sources. Read-only.",
	}, h.sourcesHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "pkg_validate",
		Description: `Check a value against the input validator without running anything.

Reports whether the value is accepted in the given context and, if not, the
reason and the name of the rule that fired.`,
	}, h.validateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "pkg_inspect",
		Description: `Reload a previous run by run id.

Optionally filter to one package id, or an id prefix such as Microsoft.*.`,
	}, h.inspectHandler)

	return s
}

// save stores the run. A failure is logged and does not fail the tool.
func (h *handler) save(run *workflow.Run) {
	if h.store == nil {
		return
	}
	if err := h.store.Save(run.Record()); err != nil {
		logging.Error("mcp", "saving run failed", "run_id", run.ID, "error", err)
	}
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}

// runError reports a failed run as a tool error.
func runError(err error) (*mcp.CallToolResult, any, error) {
	return errorResult(fmt.Sprintf("Status: FAIL\n\n%s\n", describe(err)))
}
