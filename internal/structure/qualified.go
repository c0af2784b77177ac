package structure

import (
	"path"
	"path/filepath"
	"strings"
)

// PathSeparator joins the segments of qualified names and ids.
const PathSeparator = "::"

// ModulePath derives the module path of a file: the slash separated path
// without its extension. Files differing only by extension (foo.h and foo.c,
// foo.py and foo.pyi) share a module, and so share declaration ids.
func ModulePath(filePath string) string {
	p := filepath.ToSlash(filePath)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(p, path.Ext(p))
}

// QualifiedID joins a parent scope id and a local name.
func QualifiedID(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + PathSeparator + name
}

// Segments splits a qualified id into comparable segments. The module path
// part is split on "/" so that import paths can be matched against it.
func Segments(id string) []string {
	parts := strings.Split(id, PathSeparator)
	segments := make([]string, 0, len(parts)+2)
	for i, p := range parts {
		if i == 0 {
			segments = append(segments, strings.Split(p, "/")...)
			continue
		}
		segments = append(segments, p)
	}
	return segments
}

// SplitPath splits a written name on any of the given separators and drops
// empty segments, so "\App\Models\User" becomes [App Models User].
func SplitPath(text string, separators ...string) []string {
	if len(separators) == 0 {
		separators = []string{PathSeparator}
	}
	for _, sep := range separators[1:] {
		text = strings.ReplaceAll(text, sep, separators[0])
	}
	var out []string
	for _, seg := range strings.Split(text, separators[0]) {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ScopeName returns the name a node adds to the ids of the declarations
// nested in it. An ImplBlock contributes its implementing type, so methods
// share the id prefix of the type they belong to. The second result is
// false when the node opens no scope.
func ScopeName(n *Node) (string, bool) {
	switch n.Kind {
	case KindSourceFile, KindModuleDef, KindTypeDef, KindTraitDef, KindFunctionDef:
		return n.Name, n.Name != ""
	case KindImplBlock:
		if n.Target != nil && !n.Target.IsZero() {
			return n.Target.String(), true
		}
	}
	return "", false
}
