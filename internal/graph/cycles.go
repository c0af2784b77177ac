package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/usagegraph/internal/diag"
)

// CompositionCycles returns every set of symbols that reach themselves
// through Composition edges. Each cycle is sorted by id and the cycles are
// ordered by their first id.
func CompositionCycles(g *Graph) ([][]string, error) {
	cg := graph.New(graph.StringHash, graph.Directed())
	selfLoops := make(map[string]bool)

	for _, e := range g.EdgesOf(KindComposition) {
		if !e.Subject.Resolved() || e.Object == nil || !e.Object.Resolved() {
			continue
		}
		from, to := e.Subject.ID, e.Object.ID
		_ = cg.AddVertex(from)
		_ = cg.AddVertex(to)
		if from == to {
			selfLoops[from] = true
			continue
		}
		_ = cg.AddEdge(from, to)
	}

	components, err := graph.StronglyConnectedComponents(cg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute composition components: %w", err)
	}

	var cycles [][]string
	for _, component := range components {
		if len(component) > 1 || (len(component) == 1 && selfLoops[component[0]]) {
			cycle := append([]string(nil), component...)
			sort.Strings(cycle)
			cycles = append(cycles, cycle)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, nil
}

// CycleDiagnostics returns one CompositionCycle warning per symbol that
// takes part in a composition cycle.
func CycleDiagnostics(g *Graph) ([]diag.Diagnostic, error) {
	cycles, err := CompositionCycles(g)
	if err != nil {
		return nil, err
	}
	var out []diag.Diagnostic
	for _, cycle := range cycles {
		members := strings.Join(cycle, ", ")
		for _, id := range cycle {
			d := diag.Diagnostic{
				Severity: diag.SeverityWarning,
				Code:     diag.CodeCompositionCycle,
				Message:  fmt.Sprintf("%s is part of a composition cycle: %s", id, members),
			}
			if s, ok := g.Symbol(id); ok && s.Span != nil {
				d.File = s.Span.File
				d.Position = s.Span.Start
			}
			out = append(out, d)
		}
	}
	return out, nil
}
