package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for Report:
// - Counts cover every kind, including kinds with no edges
// - Unresolved endpoints are listed with their site position
// - Diagnostics are split into parse, resolution and cycle groups
// - Composition cycles are detected even when not recorded on the graph
// - Cycle diagnostics already on the graph are not duplicated
// - Text and JSON renderings carry the counts
// - Tracker rebuilds only when the builder version changes

func span(file string, start, end, line int) structure.Span {
	return structure.Span{
		File:      file,
		StartByte: start,
		EndByte:   end,
		Start:     structure.Position{Line: line, Column: 1},
		End:       structure.Position{Line: line, Column: end - start + 1},
	}
}

func typeSymbol(id, name string, s structure.Span) *graph.Symbol {
	return &graph.Symbol{ID: id, Name: name, Kind: graph.SymbolType, Language: "rust", Span: &s}
}

func composition(from, to *graph.Symbol, site structure.Span) graph.Event {
	obj := graph.SymbolEndpoint(to)
	return graph.Event{Kind: graph.KindComposition, Subject: graph.SymbolEndpoint(from), Object: &obj, Site: site}
}

func sampleEvents() []graph.Event {
	a := typeSymbol("lib::A", "A", span("lib.rs", 0, 30, 1))
	b := typeSymbol("lib::B", "B", span("lib.rs", 31, 60, 2))
	missing := graph.UnresolvedEndpoint("Missing", graph.ReasonUnknown)

	return []graph.Event{
		{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(a), Site: *a.Span},
		{Kind: graph.KindDefinition, Subject: graph.SymbolEndpoint(b), Site: *b.Span},
		composition(a, b, span("lib.rs", 10, 20, 1)),
		composition(b, a, span("lib.rs", 40, 50, 2)),
		{Kind: graph.KindTypedBinding, Subject: graph.SymbolEndpoint(a), Object: &missing, Site: span("lib.rs", 70, 80, 4)},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	b.Merge(sampleEvents())
	b.Record(diag.Errorf(diag.CodeParseError, "bad.rs", structure.Position{Line: 1, Column: 1}, "unexpected token"))

	r, err := Build(b.Snapshot())
	require.NoError(t, err)

	assert.NotEmpty(t, r.RunID)
	assert.False(t, r.GeneratedAt.IsZero())
	assert.Equal(t, 2, r.Symbols)
	assert.Equal(t, 5, r.Edges)

	require.Len(t, r.Counts, len(graph.Kinds))
	assert.Equal(t, 2, r.Counts[graph.KindDefinition])
	assert.Equal(t, 2, r.Counts[graph.KindComposition])
	assert.Equal(t, 1, r.Counts[graph.KindTypedBinding])
	assert.Equal(t, 0, r.Counts[graph.KindStaticCall])

	require.Len(t, r.Unresolved, 1)
	assert.Equal(t, Unresolved{
		Kind:   graph.KindTypedBinding,
		Name:   "Missing",
		Reason: graph.ReasonUnknown,
		File:   "lib.rs",
		Line:   4,
		Column: 1,
	}, r.Unresolved[0])

	require.Len(t, r.ParseErrors, 1)
	assert.Equal(t, "bad.rs", r.ParseErrors[0].File)

	require.Len(t, r.Resolution, 1)
	assert.Equal(t, diag.CodeUnknown, r.Resolution[0].Code)

	require.Len(t, r.Cycles, 2)
	for _, d := range r.Cycles {
		assert.Equal(t, diag.CodeCompositionCycle, d.Code)
		assert.Equal(t, diag.SeverityWarning, d.Severity)
	}
	assert.Contains(t, r.Cycles[0].Message, "lib::A")
	assert.Contains(t, r.Cycles[1].Message, "lib::B")

	assert.True(t, r.HasErrors())
	assert.Len(t, r.Diagnostics(), 4)
}

func TestBuild_RecordedCyclesNotDuplicated(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	b.Merge(sampleEvents())
	cycles, err := graph.CycleDiagnostics(b.Snapshot())
	require.NoError(t, err)
	b.Record(cycles...)

	r, err := Build(b.Snapshot())
	require.NoError(t, err)
	assert.Len(t, r.Cycles, 2)
	assert.False(t, r.HasErrors())
}

func TestBuild_EmptyGraph(t *testing.T) {
	t.Parallel()

	r, err := Build(graph.New())
	require.NoError(t, err)
	assert.Zero(t, r.Symbols)
	assert.Zero(t, r.Edges)
	assert.Empty(t, r.Unresolved)
	assert.Empty(t, r.Diagnostics())
	assert.False(t, r.HasErrors())
}

func TestReport_Write(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	b.Merge(sampleEvents())
	r, err := Build(b.Snapshot())
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.WriteText(&buf))
		out := buf.String()
		assert.Contains(t, out, "Symbols: 2")
		assert.Contains(t, out, "Composition")
		assert.Contains(t, out, "Unresolved: 1")
		assert.Contains(t, out, `lib.rs:4:1 TypedBinding "Missing" (Unknown)`)
		assert.Contains(t, out, "Diagnostics (3):")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.WriteJSON(&buf))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, r.RunID, decoded["run_id"])
		assert.EqualValues(t, 5, decoded["edges"])
		counts, ok := decoded["counts"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 2, counts["Composition"])
	})
}

func TestTracker(t *testing.T) {
	t.Parallel()

	b := graph.NewBuilder()
	tracker := NewTracker(b)

	first, err := tracker.Report()
	require.NoError(t, err)
	assert.Zero(t, first.Edges)

	again, err := tracker.Report()
	require.NoError(t, err)
	assert.Same(t, first, again)

	b.Merge(sampleEvents())
	updated, err := tracker.Report()
	require.NoError(t, err)
	assert.NotSame(t, first, updated)
	assert.Equal(t, 5, updated.Edges)
	assert.Equal(t, b.Version(), updated.Version)

	// Re-merging is a no-op, so the report is reused.
	b.Merge(sampleEvents())
	same, err := tracker.Report()
	require.NoError(t, err)
	assert.Same(t, updated, same)
}
