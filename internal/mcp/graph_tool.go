package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/usagegraph/internal/graph"
)

// GraphQuerier is the interface for graph query operations.
type GraphQuerier interface {
	Query(ctx context.Context, req *graph.QueryRequest) (*graph.QueryResponse, error)
}

// Result limits for the usage_graph tool
const maxGraphResults = 500

// AddUsageGraphTool registers the usage_graph tool with an MCP server.
func AddUsageGraphTool(s *server.MCPServer, querier GraphQuerier) {
	tool := mcp.NewTool(
		"usage_graph",
		mcp.WithDescription("Query how types, traits and functions are used across the codebase. Operations: uses (what the target depends on), used_by (what depends on the target), implementations (types implementing a trait or interface), composes (types transitively held by the target's fields)."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Type of query: 'uses', 'used_by', 'implementations', or 'composes'")),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Qualified symbol id or simple name (e.g., 'src/shapes::Circle', 'Circle')")),
		mcp.WithArray("kinds",
			mcp.Description("Restrict traversed edges to these pattern kinds, e.g. ['Composition', 'TypedBinding']")),
		mcp.WithBoolean("include_context",
			mcp.Description("Include code snippets in results (default: true)")),
		mcp.WithNumber("context_lines",
			mcp.Description("Number of context lines around code (default: 3, max: 20)")),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth for recursive queries (default: 1, max: 10)")),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 100, max: 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createUsageGraphHandler(querier))
}

// createUsageGraphHandler creates the handler function for the usage_graph tool.
func createUsageGraphHandler(querier GraphQuerier) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		operation, err := parseStringArg(argsMap, "operation", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		op, ok := parseOperation(operation)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid operation: %s (must be one of: %s)", operation, operationNames())), nil
		}

		target, err := parseStringArg(argsMap, "target", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		req := &graph.QueryRequest{
			Operation:      op,
			Target:         target,
			IncludeContext: parseBoolArg(argsMap, "include_context", true),
			ContextLines:   parseIntArg(argsMap, "context_lines", graph.DefaultContextLines, 0, graph.MaxContextLines),
			Depth:          parseIntArg(argsMap, "depth", graph.DefaultDepth, 1, graph.MaxDepth),
			MaxResults:     parseIntArg(argsMap, "max_results", graph.DefaultMaxResults, 1, maxGraphResults),
		}
		for _, name := range parseStringSliceArg(argsMap, "kinds") {
			kind, ok := graph.ParseKind(name)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown pattern kind: %s", name)), nil
			}
			req.Kinds = append(req.Kinds, kind)
		}

		response, err := querier.Query(ctx, req)
		if errors.Is(err, graph.ErrSymbolNotFound) || errors.Is(err, graph.ErrAmbiguousTarget) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("graph query failed: %w", err)
		}

		return marshalToolResponse(response)
	}
}

func parseOperation(name string) (graph.QueryOperation, bool) {
	for _, op := range graph.Operations {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

func operationNames() string {
	names := make([]string, len(graph.Operations))
	for i, op := range graph.Operations {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
