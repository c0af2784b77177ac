package parsers

import (
	"context"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var pythonLanguage = Language{
	Name:       "python",
	Extensions: []string{".py", ".pyi"},
	Prelude: map[string]string{
		"list":                "builtins::list",
		"dict":                "builtins::dict",
		"set":                 "builtins::set",
		"frozenset":           "builtins::frozenset",
		"tuple":               "builtins::tuple",
		"type":                "builtins::type",
		"range":               "builtins::range",
		"Exception":           "builtins::Exception",
		"BaseException":       "builtins::BaseException",
		"ValueError":          "builtins::ValueError",
		"TypeError":           "builtins::TypeError",
		"KeyError":            "builtins::KeyError",
		"IndexError":          "builtins::IndexError",
		"RuntimeError":        "builtins::RuntimeError",
		"NotImplementedError": "builtins::NotImplementedError",
	},
}

// pythonPrimitives are builtin scalar types.
var pythonPrimitives = map[string]bool{
	"int": true, "float": true, "complex": true, "str": true, "bytes": true,
	"bool": true, "None": true, "object": true, "Any": true,
}

// pythonTraitBases mark a class as an interface.
var pythonTraitBases = map[string]bool{
	"Protocol": true, "ABC": true,
}

// pythonParser parses Python files.
type pythonParser struct {
	*treeSitterParser
}

// NewPythonParser creates a new Python parser.
func NewPythonParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(python.Language())
	return &pythonParser{
		treeSitterParser: newTreeSitterParser(lang, pythonLanguage, opts),
	}
}

// Parse parses a Python source file.
func (p *pythonParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *pythonParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *pythonParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "class_definition":
		p.extractClass(b, n, parent)
	case "function_definition":
		p.extractFunction(b, n, parent)
	case "import_statement":
		p.extractImport(b, n, parent)
	case "import_from_statement":
		p.extractFromImport(b, n, parent)
	case "assignment":
		p.extractAssignment(b, n, parent)
	case "call":
		p.extractCall(b, n, parent)
	case "comment", "decorator":
	default:
		p.children(b, n, parent)
	}
}

// extractClass converts a class. Classes deriving from Protocol or ABC are
// interfaces.
func (p *pythonParser) extractClass(b *builder, n *sitter.Node, parent *structure.Node) {
	kind := structure.KindTypeDef
	var bases []*sitter.Node
	for _, arg := range named(n.ChildByFieldName("superclasses")) {
		if arg.Kind() == "keyword_argument" {
			if b.fieldText(arg, "name") == "metaclass" && strings.HasSuffix(b.fieldText(arg, "value"), "ABCMeta") {
				kind = structure.KindTraitDef
			}
			continue
		}
		ref, _ := p.typeRef(b, arg)
		if ref != nil && pythonTraitBases[ref.Name()] {
			kind = structure.KindTraitDef
		}
		bases = append(bases, arg)
	}

	def := b.node(kind, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	for _, base := range bases {
		ref, sites := p.typeRef(b, base)
		if ref == nil || ref.Name() == "object" {
			def.Append(sites...)
			continue
		}
		site := b.node(structure.KindInheritanceSite, ref.Name(), base)
		site.Target = ref
		site.Append(sites...)
		def.Append(site)
	}

	for _, stmt := range named(n.ChildByFieldName("body")) {
		if stmt.Kind() == "expression_statement" {
			if assign := findChildByType(stmt, "assignment"); assign != nil && assign.ChildByFieldName("type") != nil && kind == structure.KindTypeDef {
				p.addField(b, assign, def)
				continue
			}
		}
		p.visit(b, stmt, def)
	}
	parent.Append(def)
}

func (p *pythonParser) addField(b *builder, n *sitter.Node, def *structure.Node) {
	field := b.node(structure.KindFieldDecl, b.fieldText(n, "left"), n)
	ref, sites := p.typeRef(b, n.ChildByFieldName("type"))
	field.TypeAnnotation = ref
	field.Append(sites...)
	def.Append(field)
	if right := n.ChildByFieldName("right"); right != nil {
		p.visit(b, right, def)
	}
}

// extractFunction converts functions and methods.
func (p *pythonParser) extractFunction(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
	fn.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	for _, param := range named(n.ChildByFieldName("parameters")) {
		_, sites := p.typeRef(b, param.ChildByFieldName("type"))
		fn.Append(sites...)
	}
	_, sites := p.typeRef(b, n.ChildByFieldName("return_type"))
	fn.Append(sites...)
	p.children(b, n.ChildByFieldName("body"), fn)
	parent.Append(fn)
}

// extractAssignment converts annotated assignments into bindings and records
// module level TypeVar declarations as type parameters of the file.
func (p *pythonParser) extractAssignment(b *builder, n *sitter.Node, parent *structure.Node) {
	right := n.ChildByFieldName("right")
	if parent.Kind == structure.KindSourceFile && right != nil && right.Kind() == "call" {
		switch callee := b.fieldText(right, "function"); strings.TrimPrefix(callee, "typing.") {
		case "TypeVar", "ParamSpec", "TypeVarTuple", "NewType":
			left := n.ChildByFieldName("left")
			if callee == "NewType" {
				parent.Append(b.node(structure.KindTypeDef, b.text(left), n))
				return
			}
			parent.Generics = appendRef(parent.Generics, b.ref(left, []string{b.text(left)}, false))
			return
		}
	}
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		p.children(b, n, parent)
		return
	}
	binding := b.node(structure.KindVariableBinding, b.fieldText(n, "left"), n)
	ref, sites := p.typeRef(b, typeNode)
	binding.TypeAnnotation = ref
	binding.Append(sites...)
	if right != nil {
		p.visit(b, right, binding)
	}
	parent.Append(binding)
}

// extractImport converts `import a.b` and `import a.b as c`.
func (p *pythonParser) extractImport(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		switch child.Kind() {
		case "dotted_name":
			path := structure.SplitPath(b.text(child), ".")
			parent.Append(p.importDecl(b, child, path[0], path[:1]))
		case "aliased_import":
			path := structure.SplitPath(b.fieldText(child, "name"), ".")
			parent.Append(p.importDecl(b, child, b.fieldText(child, "alias"), path))
		}
	}
}

// extractFromImport converts `from m import a, b as c, *`.
func (p *pythonParser) extractFromImport(b *builder, n *sitter.Node, parent *structure.Node) {
	moduleNode := n.ChildByFieldName("module_name")
	module := structure.SplitPath(strings.TrimLeft(b.text(moduleNode), "."), ".")
	for _, child := range named(n) {
		if sameNode(child, moduleNode) {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			name := structure.SplitPath(b.text(child), ".")
			parent.Append(p.importDecl(b, child, name[len(name)-1], append(append([]string{}, module...), name...)))
		case "aliased_import":
			name := structure.SplitPath(b.fieldText(child, "name"), ".")
			parent.Append(p.importDecl(b, child, b.fieldText(child, "alias"), append(append([]string{}, module...), name...)))
		case "wildcard_import":
			parent.Append(p.importDecl(b, child, structure.WildcardImport, module))
		}
	}
}

func (p *pythonParser) importDecl(b *builder, n *sitter.Node, alias string, path []string) *structure.Node {
	decl := b.node(structure.KindImportDecl, alias, n)
	decl.Target = b.ref(n, path, false)
	return decl
}

// extractCall converts `Type.method(...)` and `Type(...)` calls.
func (p *pythonParser) extractCall(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := n.ChildByFieldName("function")
	var call *structure.Node
	switch {
	case fn == nil:
	case fn.Kind() == "identifier" && isTypeName(b.text(fn)) && !pythonPrimitives[b.text(fn)]:
		call = b.node(structure.KindCallExpr, "new", n)
		call.Target = b.ref(fn, []string{b.text(fn)}, false)
	case fn.Kind() == "attribute":
		object := fn.ChildByFieldName("object")
		if path := p.attributePath(b, object); len(path) > 0 && isTypeName(path[len(path)-1]) {
			call = b.node(structure.KindCallExpr, b.fieldText(fn, "attribute"), n)
			call.Target = b.ref(object, path, false)
		}
	}
	if call == nil {
		p.children(b, n, parent)
		return
	}
	p.children(b, n.ChildByFieldName("arguments"), call)
	parent.Append(call)
}

// attributePath returns the segments of a dotted name expression.
func (p *pythonParser) attributePath(b *builder, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier":
		return []string{b.text(n)}
	case "attribute", "dotted_name":
		segs := structure.SplitPath(b.text(n), ".")
		for _, s := range segs {
			if !isIdentifier(s) || s == "self" || s == "cls" {
				return nil
			}
		}
		return segs
	}
	return nil
}

func (p *pythonParser) typeParams(b *builder, n *sitter.Node) []structure.NameRef {
	var params []structure.NameRef
	for _, param := range named(n) {
		name := strings.TrimSpace(strings.SplitN(b.text(param), ":", 2)[0])
		name = strings.TrimLeft(name, "*")
		if isIdentifier(name) {
			params = appendRef(params, b.ref(param, []string{name}, false))
		}
	}
	return params
}

// typeRef converts an annotation into its head reference and GenericArgSite
// nodes. String forward references are unwrapped.
func (p *pythonParser) typeRef(b *builder, n *sitter.Node) (*structure.NameRef, []*structure.Node) {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil, nil
	}
	switch n.Kind() {
	case "type":
		kids := named(n)
		if len(kids) == 0 {
			return nil, nil
		}
		return p.typeRef(b, kids[0])
	case "identifier":
		name := b.text(n)
		return b.ref(n, []string{name}, pythonPrimitives[name]), nil
	case "none":
		return b.ref(n, []string{"None"}, true), nil
	case "attribute", "member_type", "dotted_name":
		return b.ref(n, structure.SplitPath(b.text(n), "."), false), nil
	case "string":
		text := strings.Trim(b.text(n), `"'`)
		segs := structure.SplitPath(text, ".")
		for _, s := range segs {
			if !isIdentifier(s) {
				return nil, nil
			}
		}
		if len(segs) == 0 {
			return nil, nil
		}
		return b.ref(n, segs, pythonPrimitives[segs[len(segs)-1]]), nil
	case "generic_type":
		var head *structure.NameRef
		var args []*structure.NameRef
		var nested []*structure.Node
		for _, child := range named(n) {
			if child.Kind() == "type_parameter" {
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
	case "subscript":
		valueNode := n.ChildByFieldName("value")
		head, _ := p.typeRef(b, valueNode)
		var args []*structure.NameRef
		var nested []*structure.Node
		for _, child := range named(n) {
			if sameNode(child, valueNode) {
				continue
			}
			ref, sites := p.typeRef(b, child)
			args = append(args, ref)
			nested = append(nested, sites...)
		}
		return head, b.genericSite(n, head, args, nested)
	case "union_type", "binary_operator":
		var head *structure.NameRef
		var sites []*structure.Node
		for _, member := range named(n) {
			ref, memberSites := p.typeRef(b, member)
			if head == nil && ref != nil && !ref.Primitive {
				head = ref
			}
			sites = append(sites, memberSites...)
		}
		return head, sites
	}
	var sites []*structure.Node
	for _, child := range named(n) {
		_, childSites := p.typeRef(b, child)
		sites = append(sites, childSites...)
	}
	return nil, sites
}
