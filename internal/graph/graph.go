package graph

import (
	"sort"

	"github.com/mvp-joe/usagegraph/internal/diag"
)

// Graph is an arena of symbols keyed by qualified id plus the ordered list
// of usage pattern edges between them.
type Graph struct {
	symbols     map[string]*Symbol
	edges       []Edge
	edgeKeys    map[edgeKey]struct{}
	diagnostics []diag.Diagnostic
	diagKeys    map[diag.Diagnostic]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		symbols:  make(map[string]*Symbol),
		edgeKeys: make(map[edgeKey]struct{}),
		diagKeys: make(map[diag.Diagnostic]struct{}),
	}
}

// Symbol returns the symbol with the given id.
func (g *Graph) Symbol(id string) (*Symbol, bool) {
	s, ok := g.symbols[id]
	return s, ok
}

// Symbols returns every symbol ordered by id.
func (g *Graph) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(g.symbols))
	for _, s := range g.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the edges in discovery order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// EdgesOf returns the edges of one kind in discovery order.
func (g *Graph) EdgesOf(kind Kind) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Diagnostics returns the diagnostics recorded for the run, in recording order.
func (g *Graph) Diagnostics() []diag.Diagnostic {
	return g.diagnostics
}

// addSymbol registers a symbol. An existing symbol keeps its definition
// span; a span is only filled in when none was known.
func (g *Graph) addSymbol(s *Symbol) (*Symbol, bool) {
	if existing, ok := g.symbols[s.ID]; ok {
		if existing.Span == nil && s.Span != nil {
			span := *s.Span
			existing.Span = &span
			existing.External = false
			return existing, true
		}
		return existing, false
	}
	cp := *s
	if s.Span != nil {
		span := *s.Span
		cp.Span = &span
	}
	g.symbols[s.ID] = &cp
	return &cp, true
}

// addEdge appends an edge unless an identical one exists.
func (g *Graph) addEdge(e Edge) bool {
	k := e.key()
	if _, ok := g.edgeKeys[k]; ok {
		return false
	}
	g.edgeKeys[k] = struct{}{}
	g.edges = append(g.edges, e)
	return true
}

// addDiagnostic appends a diagnostic unless an identical one exists.
func (g *Graph) addDiagnostic(d diag.Diagnostic) bool {
	if _, ok := g.diagKeys[d]; ok {
		return false
	}
	g.diagKeys[d] = struct{}{}
	g.diagnostics = append(g.diagnostics, d)
	return true
}

// clone returns a deep copy.
func (g *Graph) clone() *Graph {
	out := New()
	for _, s := range g.symbols {
		out.addSymbol(s)
	}
	out.edges = make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Object != nil {
			obj := *e.Object
			e.Object = &obj
		}
		out.addEdge(e)
	}
	for _, d := range g.diagnostics {
		out.addDiagnostic(d)
	}
	return out
}
