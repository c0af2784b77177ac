package resolve

import (
	"iter"
	"strings"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/pattern"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// ExternalPrefix starts the id of every symbol that is known only through
// an import or a language prelude.
const ExternalPrefix = "extern"

// defaultImport is the member name TypeScript adapters give default imports.
const defaultImport = "default"

// Resolver binds raw events to symbols using a shared table.
type Resolver struct {
	table *Table
}

// New creates a resolver over a complete table.
func New(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve binds the events of one file. It never fails: references that
// cannot be bound become Unresolved endpoints.
func (r *Resolver) Resolve(events iter.Seq[pattern.Event], scope *FileScope) iter.Seq[graph.Event] {
	return func(yield func(graph.Event) bool) {
		for ev := range events {
			out := graph.Event{
				Kind:    ev.Kind,
				Subject: r.Endpoint(ev.Subject, ev.Kind, false, ev.Scope, scope),
				Site:    ev.Site,
			}
			if ev.Object != nil {
				obj := r.Endpoint(*ev.Object, ev.Kind, true, ev.Scope, scope)
				out.Object = &obj
			}
			if !yield(out) {
				return
			}
		}
	}
}

// Endpoint resolves one reference. chain lists the enclosing scope ids,
// innermost first.
func (r *Resolver) Endpoint(ref pattern.Ref, kind graph.Kind, object bool, chain []string, scope *FileScope) graph.Endpoint {
	if ref.Declared != "" {
		return graph.SymbolEndpoint(r.declared(ref, scope))
	}
	if len(ref.Path) == 0 {
		return graph.UnresolvedEndpoint("", graph.ReasonUnknown)
	}
	if s := r.lookup(ref.Path, chain, scope, externalKind(kind, object)); s != nil {
		return graph.SymbolEndpoint(s)
	}
	return r.unresolved(ref)
}

// declared returns the symbol of a reference to an enclosing declaration.
func (r *Resolver) declared(ref pattern.Ref, scope *FileScope) *graph.Symbol {
	if scope != nil {
		if s, ok := scope.Symbol(ref.Declared); ok {
			return s
		}
	}
	if s, ok := r.table.Symbol(ref.Declared); ok {
		return s
	}
	span := ref.Span
	s := &graph.Symbol{ID: ref.Declared, Name: ref.Name(), Kind: ref.DeclaredKind, Span: &span}
	if scope != nil {
		s.Language = scope.Language
	}
	return s
}

// lookup applies the binding rules in order: enclosing scopes of the same
// file, explicit imports, wildcard imports, the prelude, then a unique
// match across all files.
func (r *Resolver) lookup(path []string, chain []string, scope *FileScope, kind graph.SymbolKind) *graph.Symbol {
	if scope == nil {
		return r.unique(path)
	}

	// Same-file scope chain, innermost first.
	joined := strings.Join(path, structure.PathSeparator)
	for _, id := range chain {
		if s, ok := scope.Symbol(structure.QualifiedID(id, joined)); ok && isTypeKind(s.Kind) {
			return s
		}
	}

	// Explicit imports and aliases.
	for i, id := range chain {
		for _, imp := range scope.Imports(id) {
			if imp.Wildcard || imp.Alias != path[0] {
				continue
			}
			full := concat(imp.Path, path[1:])
			if s := r.table.best(anchor(full, chain[i:], scope)); s != nil {
				return s
			}
			if len(path) == 1 && len(imp.Path) > 1 && imp.Path[len(imp.Path)-1] == defaultImport {
				if s := r.table.best(concat(imp.Path[:len(imp.Path)-1], path)); s != nil {
					return s
				}
			}
			return r.external(full, kind, scope)
		}
	}

	// Wildcard imports bind only names declared in the analyzed sources.
	for i, id := range chain {
		for _, imp := range scope.Imports(id) {
			if !imp.Wildcard {
				continue
			}
			if s := r.table.best(anchor(concat(imp.Path, path), chain[i:], scope)); s != nil {
				return s
			}
		}
	}

	// Language prelude and fully qualified standard library paths.
	if p, ok := scope.prelude[path[0]]; ok {
		return r.external(concat(structure.SplitPath(p), path[1:]), kind, scope)
	}
	if len(path) > 1 && scope.isExternalRoot(path[0]) {
		return r.external(path, kind, scope)
	}

	return r.unique(path)
}

// anchor rewrites a path starting with self or super into one rooted at
// the enclosing module, so that only declarations of that module match.
// chain starts at the scope holding the import; only module scopes change
// what self names.
func anchor(path []string, chain []string, scope *FileScope) []string {
	if len(path) < 2 || (path[0] != "self" && path[0] != "super") {
		return path
	}
	module := scope.Module
	for _, id := range chain {
		if s, ok := scope.Symbol(id); ok && s.Kind == graph.SymbolModule {
			module = id
			break
		}
	}
	base := idSegments(module)
	if len(base) > 0 && transparentModules[base[len(base)-1]] {
		base = base[:len(base)-1]
	}
	i := 0
	if path[0] == "self" {
		i = 1
	}
	for i < len(path)-1 && path[i] == "super" {
		if len(base) > 0 {
			base = base[:len(base)-1]
		}
		i++
	}
	if len(base) == 0 {
		return path[i:]
	}
	return concat(base, path[i:])
}

// unique returns the only declaration matching path across all files.
func (r *Resolver) unique(path []string) *graph.Symbol {
	var candidates []*graph.Symbol
	if len(normalizePath(path)) == 1 {
		candidates = r.table.types(path[len(path)-1])
	} else {
		candidates = r.table.suffixMatches(path)
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return nil
}

// unresolved classifies a reference that no rule could bind.
func (r *Resolver) unresolved(ref pattern.Ref) graph.Endpoint {
	var candidates []*graph.Symbol
	if len(normalizePath(ref.Path)) == 1 {
		candidates = r.table.types(ref.Name())
	} else {
		candidates = r.table.suffixMatches(ref.Path)
	}
	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, s := range candidates {
			ids[i] = s.ID
		}
		return graph.UnresolvedEndpoint(ref.String(), graph.ReasonAmbiguous, ids...)
	}
	return graph.UnresolvedEndpoint(ref.String(), graph.ReasonUnknown)
}

// external creates the symbol for a name bound outside the analyzed sources.
func (r *Resolver) external(path []string, kind graph.SymbolKind, scope *FileScope) *graph.Symbol {
	path = stripRelative(path)
	return &graph.Symbol{
		ID:       structure.QualifiedID(ExternalPrefix, strings.Join(path, structure.PathSeparator)),
		Name:     path[len(path)-1],
		Kind:     kind,
		Language: scope.Language,
		External: true,
	}
}

// externalKind guesses the kind of an external symbol from its role.
func externalKind(kind graph.Kind, object bool) graph.SymbolKind {
	if object && kind == graph.KindTraitImplementation {
		return graph.SymbolTrait
	}
	return graph.SymbolType
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
