package parsers

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var javaLanguage = Language{
	Name:       "java",
	Extensions: []string{".java"},
	Prelude: map[string]string{
		"Object":           "java::lang::Object",
		"String":           "java::lang::String",
		"StringBuilder":    "java::lang::StringBuilder",
		"Integer":          "java::lang::Integer",
		"Long":             "java::lang::Long",
		"Short":            "java::lang::Short",
		"Byte":             "java::lang::Byte",
		"Double":           "java::lang::Double",
		"Float":            "java::lang::Float",
		"Boolean":          "java::lang::Boolean",
		"Character":        "java::lang::Character",
		"Number":           "java::lang::Number",
		"Math":             "java::lang::Math",
		"System":           "java::lang::System",
		"Thread":           "java::lang::Thread",
		"Runnable":         "java::lang::Runnable",
		"Iterable":         "java::lang::Iterable",
		"Comparable":       "java::lang::Comparable",
		"Exception":        "java::lang::Exception",
		"RuntimeException": "java::lang::RuntimeException",
		"Throwable":        "java::lang::Throwable",
		"Error":            "java::lang::Error",
		"Override":         "java::lang::Override",
		"Enum":             "java::lang::Enum",
		"Record":           "java::lang::Record",
		"Class":            "java::lang::Class",
		"Void":             "java::lang::Void",
	},
}

// javaParser parses Java files.
type javaParser struct {
	*treeSitterParser
}

// NewJavaParser creates a new Java parser.
func NewJavaParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(java.Language())
	return &javaParser{
		treeSitterParser: newTreeSitterParser(lang, javaLanguage, opts),
	}
}

// Parse parses a Java source file.
func (p *javaParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *javaParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *javaParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "class_declaration", "enum_declaration", "record_declaration":
		p.extractClass(b, n, structure.KindTypeDef, parent)
	case "interface_declaration":
		p.extractClass(b, n, structure.KindTraitDef, parent)
	case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
		p.extractMethod(b, n, parent)
	case "import_declaration":
		p.extractImport(b, n, parent)
	case "local_variable_declaration":
		p.extractLocal(b, n, parent)
	case "method_invocation":
		p.extractInvocation(b, n, parent)
	case "object_creation_expression":
		p.extractCreation(b, n, parent)
	case "package_declaration", "line_comment", "block_comment", "annotation", "marker_annotation":
	default:
		p.children(b, n, parent)
	}
}

// extractClass converts classes, enums, records and interfaces.
func (p *javaParser) extractClass(b *builder, n *sitter.Node, kind structure.NodeKind, parent *structure.Node) {
	def := b.node(kind, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))

	if superclass := n.ChildByFieldName("superclass"); superclass != nil {
		for _, typ := range named(superclass) {
			p.addInheritance(b, typ, def)
		}
	}
	if extends := findChildByType(n, "extends_interfaces"); extends != nil {
		for _, typ := range named(findChildByType(extends, "type_list")) {
			p.addInheritance(b, typ, def)
		}
	}
	interfaces := n.ChildByFieldName("interfaces")
	if interfaces == nil {
		interfaces = findChildByType(n, "super_interfaces")
	}
	if interfaces != nil {
		for _, typ := range named(findChildByType(interfaces, "type_list")) {
			ref, sites := p.typeRef(b, typ)
			if ref == nil {
				continue
			}
			impl := b.node(structure.KindImplBlock, def.Name, typ)
			impl.TypeAnnotation = ref
			impl.Append(sites...)
			def.Append(impl)
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil && kind == structure.KindTypeDef {
		// Record components are fields.
		for _, param := range named(params) {
			if param.Kind() == "formal_parameter" {
				p.addField(b, param, b.fieldText(param, "name"), param.ChildByFieldName("type"), def)
			}
		}
	}

	body := n.ChildByFieldName("body")
	p.extractMembers(b, body, def)
	if decls := findChildByType(body, "enum_body_declarations"); decls != nil {
		p.extractMembers(b, decls, def)
	}
	parent.Append(def)
}

func (p *javaParser) extractMembers(b *builder, body *sitter.Node, def *structure.Node) {
	for _, member := range named(body) {
		switch member.Kind() {
		case "field_declaration", "constant_declaration":
			if def.Kind != structure.KindTypeDef {
				// Interface constants are bindings of the interface.
				p.extractLocal(b, member, def)
				continue
			}
			typeNode := member.ChildByFieldName("type")
			for _, decl := range findChildrenByType(member, "variable_declarator") {
				// The declared type precedes the declarators, so the field
				// spans the whole declaration.
				p.addField(b, member, b.fieldText(decl, "name"), typeNode, def)
				if value := decl.ChildByFieldName("value"); value != nil {
					p.visit(b, value, def)
				}
			}
		case "enum_body_declarations":
		default:
			p.visit(b, member, def)
		}
	}
}

func (p *javaParser) addInheritance(b *builder, typ *sitter.Node, def *structure.Node) {
	ref, sites := p.typeRef(b, typ)
	if ref == nil {
		return
	}
	site := b.node(structure.KindInheritanceSite, ref.Name(), typ)
	site.Target = ref
	site.Append(sites...)
	def.Append(site)
}

func (p *javaParser) addField(b *builder, n *sitter.Node, name string, typeNode *sitter.Node, def *structure.Node) {
	field := b.node(structure.KindFieldDecl, name, n)
	ref, sites := p.typeRef(b, typeNode)
	field.TypeAnnotation = ref
	field.Append(sites...)
	def.Append(field)
}

// extractMethod converts methods and constructors.
func (p *javaParser) extractMethod(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
	fn.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	_, sites := p.typeRef(b, n.ChildByFieldName("type"))
	fn.Append(sites...)
	for _, param := range named(n.ChildByFieldName("parameters")) {
		_, sites := p.typeRef(b, param.ChildByFieldName("type"))
		fn.Append(sites...)
	}
	p.children(b, n.ChildByFieldName("body"), fn)
	parent.Append(fn)
}

// extractImport converts single type, static and on-demand imports.
func (p *javaParser) extractImport(b *builder, n *sitter.Node, parent *structure.Node) {
	var pathNode *sitter.Node
	for _, child := range named(n) {
		if child.Kind() == "scoped_identifier" || child.Kind() == "identifier" {
			pathNode = child
		}
	}
	if pathNode == nil {
		return
	}
	path := structure.SplitPath(b.text(pathNode), ".")
	alias := path[len(path)-1]
	if findChildByType(n, "asterisk") != nil {
		alias = structure.WildcardImport
	}
	decl := b.node(structure.KindImportDecl, alias, n)
	decl.Target = b.ref(pathNode, path, false)
	parent.Append(decl)
}

// extractLocal converts typed local variables. `var` is inferred and skipped.
func (p *javaParser) extractLocal(b *builder, n *sitter.Node, parent *structure.Node) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil || b.text(typeNode) == "var" {
		p.children(b, n, parent)
		return
	}
	ref, sites := p.typeRef(b, typeNode)
	binding := b.node(structure.KindVariableBinding, "", n)
	names := make([]string, 0, 1)
	for _, decl := range findChildrenByType(n, "variable_declarator") {
		names = append(names, b.fieldText(decl, "name"))
	}
	if len(names) > 0 {
		binding.Name = names[0]
	}
	binding.TypeAnnotation = ref
	binding.Append(sites...)
	for _, decl := range findChildrenByType(n, "variable_declarator") {
		if value := decl.ChildByFieldName("value"); value != nil {
			p.visit(b, value, binding)
		}
	}
	parent.Append(binding)
}

// extractInvocation converts `Type.method(...)` calls.
func (p *javaParser) extractInvocation(b *builder, n *sitter.Node, parent *structure.Node) {
	object := n.ChildByFieldName("object")
	path := p.objectPath(b, object)
	if len(path) == 0 || !isTypeName(path[len(path)-1]) {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, b.fieldText(n, "name"), n)
	call.Target = b.ref(object, path, false)
	p.children(b, n.ChildByFieldName("arguments"), call)
	parent.Append(call)
}

// extractCreation converts `new Type(...)` into a constructor call.
func (p *javaParser) extractCreation(b *builder, n *sitter.Node, parent *structure.Node) {
	ref, _ := p.typeRef(b, n.ChildByFieldName("type"))
	if ref == nil {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, "new", n)
	call.Target = ref
	p.children(b, n.ChildByFieldName("arguments"), call)
	if body := findChildByType(n, "class_body"); body != nil {
		p.children(b, body, call)
	}
	parent.Append(call)
}

// objectPath returns the segments of an identifier or field access chain.
func (p *javaParser) objectPath(b *builder, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		return []string{b.text(n)}
	case "field_access", "scoped_identifier":
		segs := structure.SplitPath(b.text(n), ".")
		for _, s := range segs {
			if !isIdentifier(s) || s == "this" || s == "super" {
				return nil
			}
		}
		return segs
	}
	return nil
}

func (p *javaParser) typeParams(b *builder, n *sitter.Node) []structure.NameRef {
	var params []structure.NameRef
	for _, param := range named(n) {
		if id := findChildByType(param, "type_identifier"); id != nil {
			params = appendRef(params, b.ref(id, []string{b.text(id)}, false))
		}
	}
	return params
}

// typeRef converts a type into its head reference and GenericArgSite nodes.
func (p *javaParser) typeRef(b *builder, n *sitter.Node) (*structure.NameRef, []*structure.Node) {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil, nil
	}
	switch n.Kind() {
	case "type_identifier", "identifier":
		return b.ref(n, []string{b.text(n)}, false), nil
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return b.ref(n, []string{b.text(n)}, true), nil
	case "scoped_type_identifier", "scoped_identifier":
		return b.ref(n, structure.SplitPath(b.text(n), "."), false), nil
	case "generic_type":
		var head *structure.NameRef
		var args []*structure.NameRef
		var nested []*structure.Node
		for _, child := range named(n) {
			if child.Kind() == "type_arguments" {
				for _, arg := range named(child) {
					ref, sites := p.typeRef(b, arg)
					args = append(args, ref)
					nested = append(nested, sites...)
				}
				continue
			}
			if head == nil {
				head, _ = p.typeRef(b, child)
			}
		}
		return head, b.genericSite(n, head, args, nested)
	case "array_type":
		return p.typeRef(b, n.ChildByFieldName("element"))
	case "annotated_type":
		kids := named(n)
		if len(kids) == 0 {
			return nil, nil
		}
		return p.typeRef(b, kids[len(kids)-1])
	case "wildcard":
		kids := named(n)
		for _, k := range kids {
			if ref, sites := p.typeRef(b, k); ref != nil {
				return ref, sites
			}
		}
		return nil, nil
	}
	var sites []*structure.Node
	for _, child := range named(n) {
		_, childSites := p.typeRef(b, child)
		sites = append(sites, childSites...)
	}
	return nil, sites
}
