package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var phpLanguage = Language{
	Name:       "php",
	Extensions: []string{".php"},
	Prelude: map[string]string{
		"Exception":         "php::Exception",
		"Throwable":         "php::Throwable",
		"Error":             "php::Error",
		"Stringable":        "php::Stringable",
		"ArrayAccess":       "php::ArrayAccess",
		"Countable":         "php::Countable",
		"IteratorAggregate": "php::IteratorAggregate",
		"Traversable":       "php::Traversable",
		"JsonSerializable":  "php::JsonSerializable",
		"Closure":           "php::Closure",
		"stdClass":          "php::stdClass",
		"DateTime":          "php::DateTime",
		"DateTimeImmutable": "php::DateTimeImmutable",
		"ArrayObject":       "php::ArrayObject",
		"ArrayIterator":     "php::ArrayIterator",
	},
}

// phpParser parses PHP files.
type phpParser struct {
	*treeSitterParser
}

// NewPhpParser creates a new PHP parser.
func NewPhpParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(php.LanguagePHP())
	return &phpParser{
		treeSitterParser: newTreeSitterParser(lang, phpLanguage, opts),
	}
}

// Parse parses a PHP source file.
func (p *phpParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *phpParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *phpParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "class_declaration", "enum_declaration":
		p.extractClass(b, n, structure.KindTypeDef, parent)
	case "interface_declaration", "trait_declaration":
		p.extractClass(b, n, structure.KindTraitDef, parent)
	case "method_declaration", "function_definition":
		p.extractFunction(b, n, parent)
	case "namespace_definition":
		body := n.ChildByFieldName("body")
		if body == nil {
			return
		}
		mod := b.node(structure.KindModuleDef, b.fieldText(n, "name"), n)
		p.children(b, body, mod)
		parent.Append(mod)
	case "namespace_use_declaration":
		p.extractUse(b, n, parent)
	case "scoped_call_expression":
		p.extractScopedCall(b, n, parent)
	case "object_creation_expression":
		p.extractCreation(b, n, parent)
	case "comment", "php_tag", "text", "text_interpolation":
	default:
		p.children(b, n, parent)
	}
}

// extractClass converts classes, enums, interfaces and traits.
func (p *phpParser) extractClass(b *builder, n *sitter.Node, kind structure.NodeKind, parent *structure.Node) {
	def := b.node(kind, b.fieldText(n, "name"), n)
	if base := findChildByType(n, "base_clause"); base != nil {
		for _, typ := range named(base) {
			if ref := p.nameRef(b, typ); ref != nil {
				site := b.node(structure.KindInheritanceSite, ref.Name(), typ)
				site.Target = ref
				def.Append(site)
			}
		}
	}
	if ifaces := findChildByType(n, "class_interface_clause"); ifaces != nil {
		for _, typ := range named(ifaces) {
			p.addImpl(b, typ, def)
		}
	}
	for _, member := range named(n.ChildByFieldName("body")) {
		switch member.Kind() {
		case "property_declaration":
			p.extractProperty(b, member, def)
		case "use_declaration":
			// Trait use inside a class body.
			for _, typ := range named(member) {
				p.addImpl(b, typ, def)
			}
		default:
			p.visit(b, member, def)
		}
	}
	parent.Append(def)
}

func (p *phpParser) addImpl(b *builder, typ *sitter.Node, def *structure.Node) {
	ref := p.nameRef(b, typ)
	if ref == nil {
		return
	}
	impl := b.node(structure.KindImplBlock, def.Name, typ)
	impl.TypeAnnotation = ref
	def.Append(impl)
}

// extractProperty converts properties. Untyped properties get a field with
// no annotation.
func (p *phpParser) extractProperty(b *builder, n *sitter.Node, def *structure.Node) {
	ref := p.typeRef(b, n.ChildByFieldName("type"))
	for _, elem := range findChildrenByType(n, "property_element") {
		nameNode := elem.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = findChildByType(elem, "variable_name")
		}
		field := b.node(structure.KindFieldDecl, strings.TrimPrefix(b.text(nameNode), "$"), n)
		field.TypeAnnotation = ref
		if def.Kind == structure.KindTypeDef {
			def.Append(field)
		}
		p.children(b, elem, def)
	}
}

// extractFunction converts functions and methods. Promoted constructor
// parameters become fields of the enclosing class.
func (p *phpParser) extractFunction(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
	p.children(b, n.ChildByFieldName("body"), fn)
	parent.Append(fn)
	if parent.Kind != structure.KindTypeDef {
		return
	}
	for _, param := range named(n.ChildByFieldName("parameters")) {
		if param.Kind() != "property_promotion_parameter" {
			continue
		}
		field := b.node(structure.KindFieldDecl, strings.TrimPrefix(b.fieldText(param, "name"), "$"), param)
		field.TypeAnnotation = p.typeRef(b, param.ChildByFieldName("type"))
		parent.Append(field)
	}
}

// extractUse converts `use A\B\C;` and `use A\B\C as D;` clauses.
func (p *phpParser) extractUse(b *builder, n *sitter.Node, parent *structure.Node) {
	prefix := []string{}
	if group := findChildByType(n, "namespace_name"); group != nil {
		prefix = structure.SplitPath(b.text(group), `\`)
	}
	var clauses []*sitter.Node
	walkTree(n, func(c *sitter.Node) bool {
		if c.Kind() == "namespace_use_clause" {
			clauses = append(clauses, c)
			return false
		}
		return true
	})
	for _, clause := range clauses {
		kids := named(clause)
		if len(kids) == 0 {
			continue
		}
		path := append(append([]string{}, prefix...), structure.SplitPath(b.text(kids[0]), `\`)...)
		if len(path) == 0 {
			continue
		}
		alias := path[len(path)-1]
		if aliasNode := clause.ChildByFieldName("alias"); aliasNode != nil {
			alias = b.text(aliasNode)
		} else if len(kids) > 1 && kids[len(kids)-1].Kind() == "name" {
			alias = b.text(kids[len(kids)-1])
		}
		decl := b.node(structure.KindImportDecl, alias, clause)
		decl.Target = b.ref(clause, path, false)
		parent.Append(decl)
	}
}

// extractScopedCall converts `Type::method()`.
func (p *phpParser) extractScopedCall(b *builder, n *sitter.Node, parent *structure.Node) {
	scope := n.ChildByFieldName("scope")
	var target *structure.NameRef
	if scope != nil {
		switch scope.Kind() {
		case "relative_scope":
			if text := b.text(scope); text == "self" || text == "static" {
				target = b.ref(scope, []string{"Self"}, false)
			}
		default:
			target = p.nameRef(b, scope)
		}
	}
	if target == nil {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, b.fieldText(n, "name"), n)
	call.Target = target
	p.children(b, n.ChildByFieldName("arguments"), call)
	parent.Append(call)
}

// extractCreation converts `new Type(...)`.
func (p *phpParser) extractCreation(b *builder, n *sitter.Node, parent *structure.Node) {
	var target *structure.NameRef
	var args *sitter.Node
	for _, child := range named(n) {
		switch child.Kind() {
		case "name", "qualified_name":
			if target == nil {
				target = p.nameRef(b, child)
			}
		case "arguments":
			args = child
		}
	}
	if target == nil {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, "new", n)
	call.Target = target
	p.children(b, args, call)
	parent.Append(call)
}

// nameRef converts a name or qualified name.
func (p *phpParser) nameRef(b *builder, n *sitter.Node) *structure.NameRef {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "name", "qualified_name", "named_type":
		return b.ref(n, structure.SplitPath(b.text(n), `\`), false)
	}
	return nil
}

// typeRef converts a declared type. Nullable and union types resolve to
// their first class type.
func (p *phpParser) typeRef(b *builder, n *sitter.Node) *structure.NameRef {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil
	}
	switch n.Kind() {
	case "primitive_type", "bottom_type":
		return b.ref(n, []string{b.text(n)}, true)
	case "named_type":
		if kids := named(n); len(kids) > 0 {
			return p.nameRef(b, kids[0])
		}
		return p.nameRef(b, n)
	case "name", "qualified_name":
		return p.nameRef(b, n)
	}
	var first *structure.NameRef
	for _, child := range named(n) {
		ref := p.typeRef(b, child)
		if ref == nil {
			continue
		}
		if !ref.Primitive {
			return ref
		}
		if first == nil {
			first = ref
		}
	}
	return first
}
