package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/report"
	"github.com/mvp-joe/usagegraph/internal/search"
)

// Test Plan for MCP tools:
// - usage_graph builds a query request with defaults and clamped limits
// - usage_graph rejects unknown operations, kinds and missing targets
// - usage_graph reports unknown symbols as tool errors
// - symbol_search passes filters through and returns the result count
// - usage_report can omit unresolved references

type mockQuerier struct {
	got *graph.QueryRequest
	err error
}

func (m *mockQuerier) Query(ctx context.Context, req *graph.QueryRequest) (*graph.QueryResponse, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &graph.QueryResponse{
		Operation: string(req.Operation),
		Target:    req.Target,
		Results: []graph.QueryResult{{
			Symbol: &graph.Symbol{ID: "lib::Circle", Name: "Circle", Kind: graph.SymbolType},
			Kind:   graph.KindTypedBinding,
		}},
		TotalFound:    1,
		TotalReturned: 1,
		Metadata:      graph.ResponseMeta{Source: "graph"},
	}, nil
}

type mockSymbolSearcher struct {
	gotQuery   string
	gotOptions *search.SearchOptions
}

func (m *mockSymbolSearcher) Search(ctx context.Context, queryStr string, options *search.SearchOptions) ([]*search.SymbolResult, error) {
	m.gotQuery, m.gotOptions = queryStr, options
	return []*search.SymbolResult{{Symbol: &graph.Symbol{ID: "lib::Circle", Name: "Circle"}, Score: 1.5}}, nil
}

type staticReport struct{ r *report.Report }

func (s staticReport) Report() (*report.Report, error) { return s.r, nil }

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "content should be text")
	return text.Text
}

func TestAddTools(t *testing.T) {
	t.Parallel()

	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	AddUsageGraphTool(mcpServer, &mockQuerier{})
	AddSymbolSearchTool(mcpServer, &mockSymbolSearcher{})
	AddUsageReportTool(mcpServer, staticReport{})

	response := mcpServer.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`,
	))
	raw, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"usage_graph"`)
	assert.Contains(t, string(raw), `"symbol_search"`)
	assert.Contains(t, string(raw), `"usage_report"`)
}

func TestUsageGraphHandler_Defaults(t *testing.T) {
	t.Parallel()

	querier := &mockQuerier{}
	handler := createUsageGraphHandler(querier)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"operation": "used_by",
		"target":    "Circle",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.NotNil(t, querier.got)
	assert.Equal(t, graph.OperationUsedBy, querier.got.Operation)
	assert.Equal(t, "Circle", querier.got.Target)
	assert.True(t, querier.got.IncludeContext)
	assert.Equal(t, graph.DefaultContextLines, querier.got.ContextLines)
	assert.Equal(t, graph.DefaultDepth, querier.got.Depth)
	assert.Equal(t, graph.DefaultMaxResults, querier.got.MaxResults)
	assert.Empty(t, querier.got.Kinds)

	var response graph.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, "used_by", response.Operation)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "lib::Circle", response.Results[0].Symbol.ID)
}

func TestUsageGraphHandler_Options(t *testing.T) {
	t.Parallel()

	querier := &mockQuerier{}
	handler := createUsageGraphHandler(querier)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"operation":       "uses",
		"target":          "lib::Canvas",
		"kinds":           []interface{}{"Composition", "GenericInstantiation"},
		"include_context": false,
		"context_lines":   50.0,
		"depth":           0.0,
		"max_results":     10000.0,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, []graph.Kind{graph.KindComposition, graph.KindGenericInstantiation}, querier.got.Kinds)
	assert.False(t, querier.got.IncludeContext)
	assert.Equal(t, graph.MaxContextLines, querier.got.ContextLines)
	assert.Equal(t, 1, querier.got.Depth)
	assert.Equal(t, maxGraphResults, querier.got.MaxResults)
}

func TestUsageGraphHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    map[string]interface{}
		err     error
		message string
	}{
		{"missing operation", map[string]interface{}{"target": "A"}, nil, "operation parameter is required"},
		{"invalid operation", map[string]interface{}{"operation": "callers", "target": "A"}, nil, "invalid operation: callers"},
		{"missing target", map[string]interface{}{"operation": "uses"}, nil, "target parameter is required"},
		{"unknown kind", map[string]interface{}{"operation": "uses", "target": "A", "kinds": []interface{}{"Calls"}}, nil, "unknown pattern kind: Calls"},
		{"not found", map[string]interface{}{"operation": "uses", "target": "A"}, fmt.Errorf("%w: A", graph.ErrSymbolNotFound), "symbol not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createUsageGraphHandler(&mockQuerier{err: tt.err})
			result, err := handler(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.message)
		})
	}
}

func TestUsageGraphHandler_QueryFailure(t *testing.T) {
	t.Parallel()

	handler := createUsageGraphHandler(&mockQuerier{err: fmt.Errorf("boom")})
	_, err := handler(context.Background(), callRequest(map[string]interface{}{"operation": "uses", "target": "A"}))
	assert.ErrorContains(t, err, "graph query failed")
}

func TestSymbolSearchHandler(t *testing.T) {
	t.Parallel()

	searcher := &mockSymbolSearcher{}
	handler := createSymbolSearchHandler(searcher)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"query":    "Circ*",
		"kind":     "Type",
		"language": "rust",
		"external": false,
		"limit":    500.0,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, "Circ*", searcher.gotQuery)
	assert.Equal(t, graph.SymbolType, searcher.gotOptions.Kind)
	assert.Equal(t, "rust", searcher.gotOptions.Language)
	require.NotNil(t, searcher.gotOptions.External)
	assert.False(t, *searcher.gotOptions.External)
	assert.Equal(t, search.MaxLimit, searcher.gotOptions.Limit)

	var response SymbolSearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &response))
	assert.Equal(t, 1, response.Total)
	assert.Equal(t, "lib::Circle", response.Results[0].Symbol.ID)
}

func TestSymbolSearchHandler_MissingQuery(t *testing.T) {
	t.Parallel()

	handler := createSymbolSearchHandler(&mockSymbolSearcher{})
	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "query parameter is required")
}

func TestUsageReportHandler(t *testing.T) {
	t.Parallel()

	r := &report.Report{
		Symbols:    2,
		Unresolved: []report.Unresolved{{Kind: graph.KindTypedBinding, Name: "Missing", Reason: graph.ReasonUnknown}},
	}
	handler := createUsageReportHandler(staticReport{r: r})

	result, err := handler(context.Background(), callRequest(map[string]interface{}{"include_unresolved": false}))
	require.NoError(t, err)

	var got report.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Equal(t, 2, got.Symbols)
	assert.Empty(t, got.Unresolved)
	assert.Len(t, r.Unresolved, 1, "source report must not be modified")

	result, err = handler(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &got))
	assert.Len(t, got.Unresolved, 1)
}
