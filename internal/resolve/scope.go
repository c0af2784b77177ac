// Package resolve binds the references found by the pattern matcher to
// symbols. Declarations are collected per file in a first pass, merged into
// a read-only table, and consulted in a second pass.
package resolve

import (
	"path"
	"strings"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Import is one import or alias visible in a scope.
type Import struct {
	Alias    string   // Local name, or "*" for a wildcard import
	Path     []string // Imported path
	Wildcard bool
	Span     structure.Span
}

// FileScope holds the declarations and imports of one file.
type FileScope struct {
	File     string
	Module   string
	Language string

	decls   map[string]*graph.Symbol // qualified id -> declaration
	order   []*graph.Symbol          // declarations in source order
	imports map[string][]Import      // scope id -> imports in source order
	prelude map[string]string        // implicitly imported name -> external path
	roots   map[string]bool          // first segments of external paths
}

// Collect gathers the declarations and imports of a parsed file. prelude
// maps names that are visible without an import to their canonical external
// path.
func Collect(root *structure.Node, prelude map[string]string) *FileScope {
	fs := &FileScope{
		decls:   make(map[string]*graph.Symbol),
		imports: make(map[string][]Import),
		prelude: prelude,
		roots:   make(map[string]bool),
	}
	for _, p := range prelude {
		if segs := structure.SplitPath(p); len(segs) > 1 {
			fs.roots[segs[0]] = true
		}
	}
	if root == nil {
		return fs
	}

	fs.File = root.Span.File
	fs.Module = root.Name
	if fs.Module == "" {
		fs.Module = structure.ModulePath(fs.File)
	}
	fs.Language = root.Language

	fs.declare(&graph.Symbol{
		ID:       fs.Module,
		Name:     path.Base(fs.Module),
		Kind:     graph.SymbolModule,
		Language: fs.Language,
		Span:     spanPtr(root.Span),
	})
	for _, c := range root.Children {
		fs.collect(c, fs.Module)
	}
	return fs
}

func (fs *FileScope) collect(n *structure.Node, scope string) {
	switch n.Kind {
	case structure.KindImportDecl:
		if n.Target != nil && !n.Target.IsZero() {
			fs.imports[scope] = append(fs.imports[scope], Import{
				Alias:    n.Name,
				Path:     n.Target.Path,
				Wildcard: n.Name == structure.WildcardImport,
				Span:     n.Span,
			})
		}
		return
	case structure.KindTypeDef, structure.KindTraitDef, structure.KindFunctionDef, structure.KindModuleDef:
		if n.Name != "" {
			kind, _ := graph.SymbolKindOf(n.Kind)
			fs.declare(&graph.Symbol{
				ID:       structure.QualifiedID(scope, n.Name),
				Name:     n.Name,
				Kind:     kind,
				Language: fs.Language,
				Span:     spanPtr(n.Span),
			})
		}
	}

	inner := scope
	if name, ok := structure.ScopeName(n); ok {
		inner = structure.QualifiedID(scope, name)
	}
	for _, c := range n.Children {
		fs.collect(c, inner)
	}
}

// declare records a declaration. The first declaration of an id wins.
func (fs *FileScope) declare(s *graph.Symbol) {
	if _, ok := fs.decls[s.ID]; ok {
		return
	}
	fs.decls[s.ID] = s
	fs.order = append(fs.order, s)
}

// Symbols returns the declarations in source order.
func (fs *FileScope) Symbols() []*graph.Symbol {
	return fs.order
}

// Symbol returns the declaration with the given id.
func (fs *FileScope) Symbol(id string) (*graph.Symbol, bool) {
	s, ok := fs.decls[id]
	return s, ok
}

// Imports returns the imports declared directly in a scope.
func (fs *FileScope) Imports(scope string) []Import {
	return fs.imports[scope]
}

// isExternalRoot reports whether a path starts with the root of the
// language's standard library, e.g. "std" or "java".
func (fs *FileScope) isExternalRoot(first string) bool {
	return fs.roots[first]
}

func spanPtr(s structure.Span) *structure.Span {
	return &s
}

// relativeSegments are path prefixes that only say where to start looking.
var relativeSegments = map[string]bool{
	"crate":  true,
	"self":   true,
	"super":  true,
	"$crate": true,
	".":      true,
	"..":     true,
}

// transparentModules are file names that stand for their directory.
var transparentModules = map[string]bool{
	"mod":      true,
	"lib":      true,
	"main":     true,
	"index":    true,
	"__init__": true,
}

// normalizePath drops relative prefixes and collapses repeated segments,
// so [crate models User] becomes [models User].
func normalizePath(p []string) []string {
	return collapse(stripRelative(p))
}

// stripRelative drops leading relative segments, keeping at least one.
func stripRelative(p []string) []string {
	i := 0
	for i < len(p)-1 && relativeSegments[p[i]] {
		i++
	}
	return p[i:]
}

// idSegments splits a qualified id for suffix matching. Transparent module
// file names are dropped and a file named after the declaration it holds is
// merged with it, so "src/models/User::User" compares as [src models User].
func idSegments(id string) []string {
	segs := structure.Segments(id)
	out := make([]string, 0, len(segs))
	for i, s := range segs {
		if i < len(segs)-1 && transparentModules[s] {
			continue
		}
		out = append(out, s)
	}
	return collapse(out)
}

func collapse(segs []string) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && strings.EqualFold(out[n-1], s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// matchLen counts the trailing segments shared by a and b.
func matchLen(a, b []string) int {
	n := 0
	for i, j := len(a)-1, len(b)-1; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if !strings.EqualFold(a[i], b[j]) {
			break
		}
		n++
	}
	return n
}
