package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/search"
)

// SymbolSearcher finds symbols by keyword.
type SymbolSearcher interface {
	Search(ctx context.Context, queryStr string, options *search.SearchOptions) ([]*search.SymbolResult, error)
}

// SymbolSearchResponse is the JSON payload of the symbol_search tool.
type SymbolSearchResponse struct {
	Query   string                 `json:"query"`
	Results []*search.SymbolResult `json:"results"`
	Total   int                    `json:"total"`
}

// AddSymbolSearchTool registers the symbol_search tool with an MCP server.
func AddSymbolSearchTool(s *server.MCPServer, searcher SymbolSearcher) {
	tool := mcp.NewTool(
		"symbol_search",
		mcp.WithDescription("Find symbols in the usage graph by name. Supports field scoping (name:, id:, kind:, file:, language:), boolean operators (+required -excluded), wildcards (Circ*) and fuzzy matching (Cirle~1). Results include how often each symbol uses and is used by others."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keyword query (e.g., 'Circle', 'name:Shape*', 'file:src/geo')")),
		mcp.WithString("kind",
			mcp.Description("Filter by symbol kind: Type, Trait, Function or Module")),
		mcp.WithString("language",
			mcp.Description("Filter by language tag (e.g., 'rust', 'typescript')")),
		mcp.WithBoolean("external",
			mcp.Description("Only external symbols (true) or only declared symbols (false)")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100, default: 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createSymbolSearchHandler(searcher))
}

// createSymbolSearchHandler creates the handler function for the symbol_search tool.
func createSymbolSearchHandler(searcher SymbolSearcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		query, err := parseStringArg(argsMap, "query", true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kind, err := parseStringArg(argsMap, "kind", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		language, err := parseStringArg(argsMap, "language", false)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		options := &search.SearchOptions{
			Kind:     graph.SymbolKind(kind),
			Language: language,
			External: parseBoolArgPtr(argsMap, "external"),
			Limit:    parseIntArg(argsMap, "limit", search.DefaultLimit, 1, search.MaxLimit),
		}

		results, err := searcher.Search(ctx, query, options)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}

		return marshalToolResponse(&SymbolSearchResponse{
			Query:   query,
			Results: results,
			Total:   len(results),
		})
	}
}
