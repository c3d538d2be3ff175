package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/pkgguard/internal/validate"
)

type validateParams struct {
	Value   string `json:"value" jsonschema:"the value to check"`
	Context string `json:"context" jsonschema:"one of package-identifier, search-term, source-name, file-path-segment, generic-argument"`
}

func (h *handler) validateHandler(ctx context.Context, req *mcp.CallToolRequest, params validateParams) (*mcp.CallToolResult, any, error) {
	vctx, ok := validate.ParseContext(params.Context)
	if !ok {
		return errorResult(fmt.Sprintf("unknown context %q", params.Context))
	}
	v := h.engine.Policy.Validator()
	return textResult(formatVerdict(vctx, v.Validate(params.Value, vctx), v.Rules()))
}

// formatVerdict never includes the checked value.
func formatVerdict(ctx validate.Context, v validate.Verdict, rules []string) string {
	var b strings.Builder
	if v.Accepted {
		fmt.Fprintln(&b, "Status: ACCEPTED")
		fmt.Fprintf(&b, "Context: %s\n", ctx)
		return b.String()
	}
	fmt.Fprintln(&b, "Status: REJECTED")
	fmt.Fprintf(&b, "Context: %s\n", ctx)
	fmt.Fprintf(&b, "Reason: %s\n", v.Reason)
	if v.Rule != "" {
		fmt.Fprintf(&b, "Rule: %s\n", v.Rule)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Rules checked in order: %s\n", strings.Join(rules, ", "))
	return b.String()
}
