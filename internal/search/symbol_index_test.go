package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for SymbolIndex:
// - Plain terms match symbol names case-insensitively
// - Field scoped and wildcard queries are supported
// - Kind, language and external filters narrow results
// - Results carry incoming and outgoing usage counts
// - Limit caps the result count
// - Rebuild replaces the indexed symbols
// - Search after Close fails, Close is idempotent

func site(file string, start, end, line int) structure.Span {
	return structure.Span{
		File:      file,
		StartByte: start,
		EndByte:   end,
		Start:     structure.Position{Line: line, Column: 1},
		End:       structure.Position{Line: line, Column: end - start + 1},
	}
}

func symbol(id, name string, kind graph.SymbolKind, s structure.Span) *graph.Symbol {
	return &graph.Symbol{ID: id, Name: name, Kind: kind, Language: "rust", Span: &s}
}

func rel(kind graph.Kind, subject *graph.Symbol, object graph.Endpoint, s structure.Span) graph.Event {
	return graph.Event{Kind: kind, Subject: graph.SymbolEndpoint(subject), Object: &object, Site: s}
}

func testGraph() *graph.Graph {
	trait := symbol("lib::Shape", "Shape", graph.SymbolTrait, site("lib.rs", 0, 20, 1))
	circle := symbol("lib::Circle", "Circle", graph.SymbolType, site("lib.rs", 21, 60, 3))
	canvas := symbol("lib::Canvas", "Canvas", graph.SymbolType, site("lib.rs", 61, 100, 8))
	draw := symbol("lib::draw", "draw", graph.SymbolFunction, site("lib.rs", 101, 160, 12))
	vec := &graph.Symbol{ID: "extern::std::vec::Vec", Name: "Vec", Kind: graph.SymbolType, External: true}

	b := graph.NewBuilder()
	b.Merge([]graph.Event{
		{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(trait), Site: *trait.Span},
		{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(circle), Site: *circle.Span},
		{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(canvas), Site: *canvas.Span},
		rel(graph.KindTraitImplementation, circle, graph.SymbolEndpoint(trait), site("lib.rs", 40, 60, 5)),
		rel(graph.KindComposition, canvas, graph.SymbolEndpoint(vec), site("lib.rs", 70, 90, 9)),
		rel(graph.KindGenericInstantiation, vec, graph.SymbolEndpoint(circle), site("lib.rs", 75, 90, 9)),
		rel(graph.KindTypedBinding, draw, graph.SymbolEndpoint(circle), site("lib.rs", 110, 130, 13)),
	})
	return b.Snapshot()
}

func newIndex(t *testing.T) SymbolIndex {
	t.Helper()
	idx, err := NewSymbolIndex(context.Background(), testGraph())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func ids(results []*SymbolResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Symbol.ID
	}
	return out
}

func TestSymbolIndex_Search(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	assert.Equal(t, 5, idx.Len())

	results, err := idx.Search(context.Background(), "circle", nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "lib::Circle", results[0].Symbol.ID)
	assert.Greater(t, results[0].Score, 0.0)

	// Generic instantiation and typed binding in, trait implementation out
	assert.Equal(t, 1, results[0].Uses)
	assert.Equal(t, 2, results[0].UsedBy)
}

func TestSymbolIndex_QuerySyntax(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"field scoped", "name:Vec", []string{"extern::std::vec::Vec"}},
		{"wildcard", "name:can*", []string{"lib::Canvas"}},
		{"no match", "Triangle", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.Search(ctx, tt.query, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(results))
		})
	}
}

func TestSymbolIndex_Filters(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	ctx := context.Background()

	results, err := idx.Search(ctx, "lib", &SearchOptions{Kind: graph.SymbolTrait})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib::Shape"}, ids(results))

	results, err = idx.Search(ctx, "lib", &SearchOptions{Language: "rust"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib::Shape", "lib::Circle", "lib::Canvas", "lib::draw"}, ids(results))

	external := true
	results, err = idx.Search(ctx, "vec", &SearchOptions{External: &external})
	require.NoError(t, err)
	assert.Equal(t, []string{"extern::std::vec::Vec"}, ids(results))

	results, err = idx.Search(ctx, "lib", &SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSymbolIndex_Rebuild(t *testing.T) {
	t.Parallel()

	idx := newIndex(t)
	require.NoError(t, idx.Rebuild(context.Background(), graph.New()))
	assert.Zero(t, idx.Len())

	results, err := idx.Search(context.Background(), "circle", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSymbolIndex_Close(t *testing.T) {
	t.Parallel()

	idx, err := NewSymbolIndex(context.Background(), testGraph())
	require.NoError(t, err)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err = idx.Search(context.Background(), "circle", nil)
	assert.Error(t, err)
}

func TestSymbolIndex_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSymbolIndex(ctx, testGraph())
	assert.ErrorIs(t, err, context.Canceled)
}
