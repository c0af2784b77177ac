// Package pattern walks a normalized tree and reports the raw usage patterns
// it contains. References are left unresolved; binding them to symbols is
// the resolver's job.
package pattern

import (
	"strings"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Ref is a reference as written in source.
type Ref struct {
	Path []string       // Name segments, e.g. [std vec Vec]
	Span structure.Span // Where the reference was written

	// Declared is set when the reference is the enclosing declaration
	// itself; it holds the declaration's qualified id.
	Declared     string
	DeclaredKind graph.SymbolKind
}

// Name returns the last path segment.
func (r Ref) Name() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// String renders the path with "::" separators.
func (r Ref) String() string {
	return strings.Join(r.Path, structure.PathSeparator)
}

// Event is a raw usage pattern found by the matcher.
type Event struct {
	Kind    graph.Kind
	Subject Ref
	Object  *Ref // nil for Definition
	Site    structure.Span

	// Scope lists the ids of the enclosing scopes, innermost first and
	// ending with the module id.
	Scope []string
}
