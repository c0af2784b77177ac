package parsers

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var cLanguage = Language{
	Name:       "c",
	Extensions: []string{".c", ".h"},
	Prelude: map[string]string{
		"FILE":    "libc::FILE",
		"va_list": "libc::va_list",
		"time_t":  "libc::time_t",
		"pid_t":   "libc::pid_t",
		"off_t":   "libc::off_t",
	},
}

// cParser parses C files.
type cParser struct {
	*treeSitterParser
}

// NewCParser creates a new C parser.
func NewCParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(c.Language())
	return &cParser{
		treeSitterParser: newTreeSitterParser(lang, cLanguage, opts),
	}
}

// Parse parses a C source file.
func (p *cParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *cParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *cParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "struct_specifier", "union_specifier", "enum_specifier":
		if n.ChildByFieldName("body") != nil {
			p.extractRecord(b, n, "", parent)
		}
	case "type_definition":
		p.extractTypedef(b, n, parent)
	case "function_definition":
		fn := b.node(structure.KindFunctionDef, declaratorName(b, n.ChildByFieldName("declarator")), n)
		p.children(b, n.ChildByFieldName("body"), fn)
		parent.Append(fn)
	case "declaration":
		p.extractDeclaration(b, n, parent)
	case "comment", "preproc_include", "preproc_def", "preproc_function_def":
	default:
		p.children(b, n, parent)
	}
}

// extractRecord converts a struct, union or enum with a body. Anonymous
// records take the name supplied by an enclosing typedef.
func (p *cParser) extractRecord(b *builder, n *sitter.Node, name string, parent *structure.Node) *structure.Node {
	if tag := b.fieldText(n, "name"); tag != "" {
		name = tag
	}
	if name == "" {
		return nil
	}
	def := b.node(structure.KindTypeDef, name, n)
	for _, field := range named(n.ChildByFieldName("body")) {
		if field.Kind() != "field_declaration" {
			continue
		}
		typeNode := field.ChildByFieldName("type")
		if inner := typeNode; inner != nil && inner.ChildByFieldName("body") != nil {
			p.extractRecord(b, inner, "", def)
		}
		ref := p.typeRef(b, typeNode)
		for _, decl := range declarators(field) {
			fd := b.node(structure.KindFieldDecl, declaratorName(b, decl), field)
			fd.TypeAnnotation = ref
			def.Append(fd)
		}
	}
	parent.Append(def)
	return def
}

// extractTypedef converts `typedef <type> Name;`.
func (p *cParser) extractTypedef(b *builder, n *sitter.Node, parent *structure.Node) {
	typeNode := n.ChildByFieldName("type")
	var aliases []string
	for _, decl := range declarators(n) {
		if name := declaratorName(b, decl); name != "" {
			aliases = append(aliases, name)
		}
	}
	if len(aliases) == 0 {
		return
	}
	if typeNode != nil && typeNode.ChildByFieldName("body") != nil {
		def := p.extractRecord(b, typeNode, aliases[0], parent)
		if def != nil && def.Name == aliases[0] {
			aliases = aliases[1:]
		}
	}
	for _, alias := range aliases {
		parent.Append(b.node(structure.KindTypeDef, alias, n))
	}
}

// extractDeclaration converts typed variable declarations. Function
// prototypes are skipped.
func (p *cParser) extractDeclaration(b *builder, n *sitter.Node, parent *structure.Node) {
	typeNode := n.ChildByFieldName("type")
	if typeNode != nil && typeNode.ChildByFieldName("body") != nil {
		p.extractRecord(b, typeNode, "", parent)
	}
	ref := p.typeRef(b, typeNode)
	for _, decl := range declarators(n) {
		if findFunctionDeclarator(decl) != nil {
			continue
		}
		binding := b.node(structure.KindVariableBinding, declaratorName(b, decl), n)
		binding.TypeAnnotation = ref
		if decl.Kind() == "init_declarator" {
			p.children(b, decl.ChildByFieldName("value"), binding)
		}
		parent.Append(binding)
	}
}

// typeRef converts a type specifier.
func (p *cParser) typeRef(b *builder, n *sitter.Node) *structure.NameRef {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil
	}
	switch n.Kind() {
	case "primitive_type", "sized_type_specifier":
		return b.ref(n, []string{b.text(n)}, true)
	case "type_identifier":
		return b.ref(n, []string{b.text(n)}, false)
	case "struct_specifier", "union_specifier", "enum_specifier":
		if nameNode := n.ChildByFieldName("name"); nameNode != nil {
			return b.ref(nameNode, []string{b.text(nameNode)}, false)
		}
	}
	return nil
}

// declarators returns the declarator children of a declaration.
func declarators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	typeNode := n.ChildByFieldName("type")
	for _, child := range named(n) {
		if sameNode(child, typeNode) {
			continue
		}
		switch child.Kind() {
		case "identifier", "field_identifier", "type_identifier", "pointer_declarator", "array_declarator",
			"init_declarator", "function_declarator", "parenthesized_declarator":
			out = append(out, child)
		}
	}
	return out
}

// declaratorName unwraps pointer, array and init declarators to the name.
func declaratorName(b *builder, n *sitter.Node) string {
	for n != nil {
		switch n.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return b.text(n)
		case "parenthesized_declarator":
			kids := named(n)
			if len(kids) == 0 {
				return ""
			}
			n = kids[0]
		default:
			n = n.ChildByFieldName("declarator")
		}
	}
	return ""
}

// findFunctionDeclarator returns the function declarator inside n, if any.
func findFunctionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		if n.Kind() == "function_declarator" {
			return n
		}
		if n.Kind() == "init_declarator" {
			return nil
		}
		n = n.ChildByFieldName("declarator")
	}
	return nil
}
