package resolve

import (
	"github.com/mvp-joe/usagegraph/internal/graph"
)

// Table is the cross-file declaration table. It is built once after every
// file has been collected and is read-only afterwards, so any number of
// resolvers may share it.
type Table struct {
	byID   map[string]*graph.Symbol
	byName map[string][]*graph.Symbol // simple name -> declarations in declaration order
	segs   map[string][]string        // id -> segments for suffix matching
	order  []*graph.Symbol
}

// NewTable merges file scopes in the given order. When two files declare
// the same id the earlier file wins.
func NewTable(scopes ...*FileScope) *Table {
	t := &Table{
		byID:   make(map[string]*graph.Symbol),
		byName: make(map[string][]*graph.Symbol),
		segs:   make(map[string][]string),
	}
	for _, fs := range scopes {
		if fs == nil {
			continue
		}
		for _, s := range fs.Symbols() {
			if _, ok := t.byID[s.ID]; ok {
				continue
			}
			t.byID[s.ID] = s
			t.byName[s.Name] = append(t.byName[s.Name], s)
			t.segs[s.ID] = idSegments(s.ID)
			t.order = append(t.order, s)
		}
	}
	return t
}

// Symbol returns the declaration with the given id.
func (t *Table) Symbol(id string) (*graph.Symbol, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// Named returns the declarations with a simple name, in declaration order.
func (t *Table) Named(name string) []*graph.Symbol {
	return t.byName[name]
}

// Symbols returns every declaration in declaration order.
func (t *Table) Symbols() []*graph.Symbol {
	return t.order
}

// Len returns the number of declarations.
func (t *Table) Len() int {
	return len(t.order)
}

// types returns the type and trait declarations named name.
func (t *Table) types(name string) []*graph.Symbol {
	var out []*graph.Symbol
	for _, s := range t.byName[name] {
		if isTypeKind(s.Kind) {
			out = append(out, s)
		}
	}
	return out
}

// best returns the type declaration whose id agrees with the longest
// suffix of path. At least two segments must agree for qualified paths.
// Ties go to the earlier declaration.
func (t *Table) best(path []string) *graph.Symbol {
	norm := normalizePath(path)
	if len(norm) == 0 {
		return nil
	}
	need := min(len(norm), 2)

	var best *graph.Symbol
	bestScore := 0
	for _, s := range t.types(path[len(path)-1]) {
		score := matchLen(t.segs[s.ID], norm)
		if score >= need && score > bestScore {
			best, bestScore = s, score
		}
	}
	return best
}

// suffixMatches returns the type declarations whose id ends with the whole
// of path.
func (t *Table) suffixMatches(path []string) []*graph.Symbol {
	norm := normalizePath(path)
	var out []*graph.Symbol
	for _, s := range t.types(path[len(path)-1]) {
		if matchLen(t.segs[s.ID], norm) >= len(norm) {
			out = append(out, s)
		}
	}
	return out
}

func isTypeKind(k graph.SymbolKind) bool {
	return k == graph.SymbolType || k == graph.SymbolTrait
}
