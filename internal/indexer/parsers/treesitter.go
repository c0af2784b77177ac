package parsers

import (
	"bytes"
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// treeSitterParser provides common tree-sitter parsing functionality.
type treeSitterParser struct {
	language      *sitter.Language
	lang          Language
	maxErrorRatio float64
}

// newTreeSitterParser creates a new tree-sitter parser for the given language.
func newTreeSitterParser(language *sitter.Language, lang Language, opts []Option) *treeSitterParser {
	p := &treeSitterParser{
		language:      language,
		lang:          lang,
		maxErrorRatio: DefaultMaxErrorRatio,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language implements Adapter.
func (p *treeSitterParser) Language() Language {
	return p.lang
}

// converter populates the SourceFile node from the tree-sitter root.
type converter func(b *builder, root *sitter.Node, file *structure.Node)

// parse runs tree-sitter over source, screens syntax errors and hands the
// tree to the language converter.
func (p *treeSitterParser) parse(ctx context.Context, filePath string, source []byte, convert converter) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewParseError(filePath, structure.Position{}, "parse of %s file cancelled: %v", p.lang.Name, err)
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return nil, NewParseError(filePath, structure.Position{}, "failed to load %s grammar: %v", p.lang.Name, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, NewParseError(filePath, structure.Position{}, "failed to parse %s file", p.lang.Name)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, NewParseError(filePath, structure.Position{}, "parse of %s file cancelled: %v", p.lang.Name, err)
	}

	rootNode := tree.RootNode()
	b := newBuilder(filePath, source)
	b.scanErrors(rootNode)

	if rootNode.IsError() {
		return nil, NewParseError(filePath, b.position(rootNode), "unrecognized %s source", p.lang.Name)
	}
	if len(source) > 0 && float64(b.errorBytes)/float64(len(source)) > p.maxErrorRatio {
		return nil, NewParseError(filePath, b.firstError,
			"syntax errors cover %d of %d bytes", b.errorBytes, len(source))
	}

	file := structure.NewNode(structure.KindSourceFile, structure.ModulePath(filePath), b.fileSpan())
	file.Language = p.lang.Name
	convert(b, rootNode, file)

	return &Result{Root: file, Diagnostics: b.diags}, nil
}

// builder carries per-file state while converting a tree-sitter tree.
type builder struct {
	file       string
	source     []byte
	diags      []diag.Diagnostic
	errorBytes int
	firstError structure.Position
}

func newBuilder(file string, source []byte) *builder {
	return &builder{file: file, source: source}
}

// scanErrors records every ERROR and MISSING node as a recovered diagnostic.
func (b *builder) scanErrors(root *sitter.Node) {
	walkTree(root, func(n *sitter.Node) bool {
		switch {
		case n.IsError():
			pos := b.position(n)
			if b.errorBytes == 0 {
				b.firstError = pos
			}
			b.errorBytes += int(n.EndByte() - n.StartByte())
			b.diags = append(b.diags, diag.Warnf(diag.CodeParseError, b.file, pos,
				"syntax error near %q", snippet(extractNodeText(n, b.source))))
			return false
		case n.IsMissing():
			pos := b.position(n)
			if b.firstError.Line == 0 {
				b.firstError = pos
			}
			b.diags = append(b.diags, diag.Warnf(diag.CodeParseError, b.file, pos, "missing %s", n.Kind()))
			return false
		}
		return true
	})
}

// position returns the 1-based start position of a node.
func (b *builder) position(n *sitter.Node) structure.Position {
	p := n.StartPosition()
	return structure.Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// span returns the span of a node.
func (b *builder) span(n *sitter.Node) structure.Span {
	start, end := n.StartPosition(), n.EndPosition()
	return structure.Span{
		File:      b.file,
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		Start:     structure.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:       structure.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}
}

// fileSpan covers the whole source, including leading and trailing trivia.
func (b *builder) fileSpan() structure.Span {
	lines := bytes.Count(b.source, []byte("\n"))
	lastLine := b.source
	if i := bytes.LastIndexByte(b.source, '\n'); i >= 0 {
		lastLine = b.source[i+1:]
	}
	return structure.Span{
		File:      b.file,
		StartByte: 0,
		EndByte:   len(b.source),
		Start:     structure.Position{Line: 1, Column: 1},
		End:       structure.Position{Line: lines + 1, Column: len(lastLine) + 1},
	}
}

// text returns the source text of a node.
func (b *builder) text(n *sitter.Node) string {
	return extractNodeText(n, b.source)
}

// fieldText returns the text of a named field child.
func (b *builder) fieldText(n *sitter.Node, field string) string {
	return b.text(n.ChildByFieldName(field))
}

// node creates a structure node spanning a tree-sitter node.
func (b *builder) node(kind structure.NodeKind, name string, n *sitter.Node) *structure.Node {
	return structure.NewNode(kind, name, b.span(n))
}

// ref creates a name reference spanning a tree-sitter node. Error and
// missing nodes yield nil, as does a path with no non-empty segments.
func (b *builder) ref(n *sitter.Node, path []string, primitive bool) *structure.NameRef {
	if n != nil && (n.IsError() || n.IsMissing()) {
		return nil
	}
	var segs []string
	for _, seg := range path {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return nil
	}
	return &structure.NameRef{Path: segs, Span: b.span(n), Primitive: primitive}
}

// appendRef appends r when it is non-nil.
func appendRef(dst []structure.NameRef, r *structure.NameRef) []structure.NameRef {
	if r == nil {
		return dst
	}
	return append(dst, *r)
}

// genericSite builds a GenericArgSite for a container and its arguments.
// Arguments without a usable reference are dropped; nested sites become
// children of the new site.
func (b *builder) genericSite(n *sitter.Node, container *structure.NameRef, args []*structure.NameRef, nested []*structure.Node) []*structure.Node {
	if container == nil {
		return nested
	}
	site := b.node(structure.KindGenericArgSite, container.Name(), n)
	site.Target = container
	for _, a := range args {
		if a != nil {
			site.Generics = append(site.Generics, *a)
		}
	}
	site.Append(nested...)
	return []*structure.Node{site}
}

// named iterates the named children of n, skipping syntax errors.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.IsError() || child.IsMissing() {
			continue
		}
		out = append(out, child)
	}
	return out
}

// sameNode reports whether two nodes cover the same bytes.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// extractNodeText extracts the text content of a tree-sitter node.
func extractNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		walkTree(child, visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child != nil && child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child != nil && child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// isTypeName reports whether a name follows the capitalized convention most
// languages use for types.
func isTypeName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// snippet shortens text for use in messages.
func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 40 {
		return text[:40] + "..."
	}
	return text
}
