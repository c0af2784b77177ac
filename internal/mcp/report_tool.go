package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/usagegraph/internal/report"
)

// ReportSource supplies the extraction report of the current graph.
type ReportSource interface {
	Report() (*report.Report, error)
}

// AddUsageReportTool registers the usage_report tool with an MCP server.
func AddUsageReportTool(s *server.MCPServer, source ReportSource) {
	tool := mcp.NewTool(
		"usage_report",
		mcp.WithDescription("Summarize the usage graph: symbol count, edge counts per pattern kind, unresolved references, parse errors and composition cycles."),
		mcp.WithBoolean("include_unresolved",
			mcp.Description("Include the list of unresolved references (default: true)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createUsageReportHandler(source))
}

func createUsageReportHandler(source ReportSource) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Arguments are optional for this tool
		argsMap, _ := request.Params.Arguments.(map[string]interface{})

		r, err := source.Report()
		if err != nil {
			return nil, fmt.Errorf("failed to build report: %w", err)
		}
		if !parseBoolArg(argsMap, "include_unresolved", true) {
			trimmed := *r
			trimmed.Unresolved = nil
			r = &trimmed
		}
		return marshalToolResponse(r)
	}
}
