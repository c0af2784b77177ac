package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/diag"
)

// Test Plan for composition cycles:
// - Acyclic composition yields no cycles
// - A two-type cycle is reported with both members
// - A self-referencing type is a cycle of one
// - Unresolved composition edges are ignored
// - Each member gets a CompositionCycle warning at its definition

func TestCompositionCycles(t *testing.T) {
	t.Parallel()

	aSpan, bSpan, cSpan := testSpan("m.rs", 0, 10), testSpan("m.rs", 11, 20), testSpan("m.rs", 21, 30)
	a := testSymbol("m::A", SymbolType, &aSpan)
	b := testSymbol("m::B", SymbolType, &bSpan)
	c := testSymbol("m::C", SymbolType, &cSpan)

	t.Run("acyclic", func(t *testing.T) {
		t.Parallel()
		bl := NewBuilder()
		bl.Merge([]Event{
			relEvent(KindComposition, a, SymbolEndpoint(b), testSpan("m.rs", 2, 4)),
			relEvent(KindComposition, b, SymbolEndpoint(c), testSpan("m.rs", 12, 14)),
		})
		cycles, err := CompositionCycles(bl.Snapshot())
		require.NoError(t, err)
		assert.Empty(t, cycles)
	})

	t.Run("mutual", func(t *testing.T) {
		t.Parallel()
		bl := NewBuilder()
		bl.Merge([]Event{
			defEvent(a), defEvent(b),
			relEvent(KindComposition, b, SymbolEndpoint(a), testSpan("m.rs", 12, 14)),
			relEvent(KindComposition, a, SymbolEndpoint(b), testSpan("m.rs", 2, 4)),
			relEvent(KindComposition, b, SymbolEndpoint(c), testSpan("m.rs", 15, 17)),
		})
		g := bl.Snapshot()

		cycles, err := CompositionCycles(g)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"m::A", "m::B"}}, cycles)

		diags, err := CycleDiagnostics(g)
		require.NoError(t, err)
		require.Len(t, diags, 2)
		for _, d := range diags {
			assert.Equal(t, diag.CodeCompositionCycle, d.Code)
			assert.Equal(t, diag.SeverityWarning, d.Severity)
			assert.Equal(t, "m.rs", d.File)
		}
		assert.Contains(t, diags[0].Message, "m::A, m::B")
	})

	t.Run("self reference", func(t *testing.T) {
		t.Parallel()
		bl := NewBuilder()
		bl.Merge([]Event{relEvent(KindComposition, c, SymbolEndpoint(c), testSpan("m.rs", 22, 24))})
		cycles, err := CompositionCycles(bl.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"m::C"}}, cycles)
	})

	t.Run("unresolved ignored", func(t *testing.T) {
		t.Parallel()
		bl := NewBuilder()
		bl.Merge([]Event{relEvent(KindComposition, a, UnresolvedEndpoint("A", ReasonUnknown), testSpan("m.rs", 2, 4))})
		cycles, err := CompositionCycles(bl.Snapshot())
		require.NoError(t, err)
		assert.Empty(t, cycles)
	})
}
