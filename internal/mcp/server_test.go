package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for Server:
// - NewServer loads the graph file and indexes its symbols
// - A missing graph file yields an empty graph
// - Report is cached until the graph is reloaded
// - Reload picks up a rewritten graph in the searcher and index

func site(line, start, end int) structure.Span {
	return structure.Span{
		File:      "lib.rs",
		StartByte: start,
		EndByte:   end,
		Start:     structure.Position{Line: line, Column: 1},
		End:       structure.Position{Line: line, Column: end - start + 1},
	}
}

func writeGraph(t *testing.T, dir string, names ...string) {
	t.Helper()

	b := graph.NewBuilder()
	var prev *graph.Symbol
	for i, name := range names {
		s := site(i+1, i*20, i*20+10)
		sym := &graph.Symbol{ID: "lib::" + name, Name: name, Kind: graph.SymbolType, Language: "rust", Span: &s}
		events := []graph.Event{{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(sym), Site: s}}
		if prev != nil {
			obj := graph.SymbolEndpoint(prev)
			events = append(events, graph.Event{Kind: graph.KindComposition, Subject: graph.SymbolEndpoint(sym), Object: &obj, Site: site(i+1, i*20+2, i*20+8)})
		}
		b.Merge(events)
		prev = sym
	}

	storage, err := graph.NewStorage(dir, graph.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, storage.Save(b.Snapshot()))
}

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), &ServerConfig{RootDir: t.TempDir(), GraphDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGraph(t, dir, "Point", "Circle")
	s := newTestServer(t, dir)

	r, err := s.Report()
	require.NoError(t, err)
	assert.Equal(t, 2, r.Symbols)
	assert.Equal(t, 1, r.Counts[graph.KindComposition])

	results, err := s.index.Search(context.Background(), "circle", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "lib::Circle", results[0].Symbol.ID)

	response, err := s.searcher.Query(context.Background(), &graph.QueryRequest{
		Operation: graph.OperationUses,
		Target:    "Circle",
	})
	require.NoError(t, err)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "lib::Point", response.Results[0].Symbol.ID)
}

func TestNewServer_MissingGraph(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, t.TempDir())

	r, err := s.Report()
	require.NoError(t, err)
	assert.Zero(t, r.Symbols)
	assert.Zero(t, s.index.Len())
}

func TestNewServer_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewServer(context.Background(), nil)
	assert.Error(t, err)
}

func TestServer_Reload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGraph(t, dir, "Point")
	s := newTestServer(t, dir)

	first, err := s.Report()
	require.NoError(t, err)
	again, err := s.Report()
	require.NoError(t, err)
	assert.Same(t, first, again)

	writeGraph(t, dir, "Point", "Circle", "Canvas")
	require.NoError(t, s.Reload(context.Background()))

	r, err := s.Report()
	require.NoError(t, err)
	assert.NotSame(t, first, r)
	assert.Equal(t, 3, r.Symbols)
	assert.Equal(t, 3, s.index.Len())

	response, err := s.searcher.Query(context.Background(), &graph.QueryRequest{
		Operation: graph.OperationUsedBy,
		Target:    "lib::Circle",
	})
	require.NoError(t, err)
	require.Len(t, response.Results, 1)
	assert.Equal(t, "lib::Canvas", response.Results[0].Symbol.ID)
}
