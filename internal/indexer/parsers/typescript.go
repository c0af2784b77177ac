package parsers

import (
	"context"
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var typeScriptPrelude = map[string]string{
	"Array":         "lib::Array",
	"ReadonlyArray": "lib::ReadonlyArray",
	"Promise":       "lib::Promise",
	"Map":           "lib::Map",
	"Set":           "lib::Set",
	"WeakMap":       "lib::WeakMap",
	"WeakSet":       "lib::WeakSet",
	"Record":        "lib::Record",
	"Partial":       "lib::Partial",
	"Required":      "lib::Required",
	"Readonly":      "lib::Readonly",
	"Pick":          "lib::Pick",
	"Omit":          "lib::Omit",
	"Date":          "lib::Date",
	"Error":         "lib::Error",
	"RegExp":        "lib::RegExp",
	"Object":        "lib::Object",
	"JSON":          "lib::JSON",
	"Math":          "lib::Math",
	"Number":        "lib::Number",
	"String":        "lib::String",
	"Symbol":        "lib::Symbol",
}

// typeScriptParser parses TypeScript and TSX files.
type typeScriptParser struct {
	*treeSitterParser
}

// NewTypeScriptParser creates a new TypeScript parser.
func NewTypeScriptParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	return &typeScriptParser{
		treeSitterParser: newTreeSitterParser(lang, Language{
			Name:       "typescript",
			Extensions: []string{".ts", ".mts", ".cts"},
			Prelude:    typeScriptPrelude,
		}, opts),
	}
}

// NewTSXParser creates a parser for TSX files using the TypeScript rules.
func NewTSXParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(typescript.LanguageTSX())
	return &typeScriptParser{
		treeSitterParser: newTreeSitterParser(lang, Language{
			Name:       "tsx",
			Extensions: []string{".tsx"},
			Prelude:    typeScriptPrelude,
		}, opts),
	}
}

// Parse parses a TypeScript source file.
func (p *typeScriptParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *typeScriptParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *typeScriptParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "class_declaration", "abstract_class_declaration", "class":
		p.extractClass(b, n, parent)
	case "interface_declaration":
		p.extractInterface(b, n, parent)
	case "type_alias_declaration":
		def := b.node(structure.KindTypeDef, b.fieldText(n, "name"), n)
		def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
		_, sites := p.typeRef(b, n.ChildByFieldName("value"))
		def.Append(sites...)
		parent.Append(def)
	case "enum_declaration":
		parent.Append(b.node(structure.KindTypeDef, b.fieldText(n, "name"), n))
	case "function_declaration", "generator_function_declaration", "function_signature":
		p.extractFunction(b, n, b.fieldText(n, "name"), parent)
	case "internal_module", "module":
		mod := b.node(structure.KindModuleDef, b.fieldText(n, "name"), n)
		p.children(b, n.ChildByFieldName("body"), mod)
		parent.Append(mod)
	case "import_statement":
		p.extractImport(b, n, parent)
	case "lexical_declaration", "variable_declaration":
		for _, decl := range named(n) {
			if decl.Kind() == "variable_declarator" {
				p.extractDeclarator(b, decl, parent)
			}
		}
	case "call_expression":
		p.extractCall(b, n, parent)
	case "new_expression":
		p.extractNew(b, n, parent)
	case "comment":
	default:
		p.children(b, n, parent)
	}
}

// extractClass converts a class with its heritage and members.
func (p *typeScriptParser) extractClass(b *builder, n *sitter.Node, parent *structure.Node) {
	def := b.node(structure.KindTypeDef, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	if heritage := findChildByType(n, "class_heritage"); heritage != nil {
		for _, clause := range named(heritage) {
			switch clause.Kind() {
			case "extends_clause":
				p.extractExtends(b, clause, def)
			case "implements_clause":
				for _, typ := range named(clause) {
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
		}
	}
	for _, member := range named(n.ChildByFieldName("body")) {
		switch member.Kind() {
		case "public_field_definition", "property_signature":
			p.addField(b, member, def)
		case "method_definition", "method_signature", "abstract_method_signature":
			name := b.fieldText(member, "name")
			p.extractFunction(b, member, name, def)
			if name == "constructor" {
				p.parameterProperties(b, member, def)
			}
		default:
			p.visit(b, member, def)
		}
	}
	parent.Append(def)
}

// extractExtends converts `extends Base<T>` clauses.
func (p *typeScriptParser) extractExtends(b *builder, clause *sitter.Node, def *structure.Node) {
	for _, value := range named(clause) {
		if value.Kind() == "type_arguments" {
			continue
		}
		path := p.expressionPath(b, value)
		if len(path) == 0 {
			continue
		}
		site := b.node(structure.KindInheritanceSite, path[len(path)-1], value)
		site.Target = b.ref(value, path, false)
		def.Append(site)
	}
	if args := clause.ChildByFieldName("type_arguments"); args != nil && len(def.Children) > 0 {
		last := def.Children[len(def.Children)-1]
		if last.Kind == structure.KindInheritanceSite {
			var refs []*structure.NameRef
			var nested []*structure.Node
			for _, arg := range named(args) {
				ref, sites := p.typeRef(b, arg)
				refs = append(refs, ref)
				nested = append(nested, sites...)
			}
			def.Append(b.genericSite(args, last.Target, refs, nested)...)
		}
	}
}

// extractInterface converts an interface and its extended interfaces.
func (p *typeScriptParser) extractInterface(b *builder, n *sitter.Node, parent *structure.Node) {
	def := b.node(structure.KindTraitDef, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	if clause := findChildByType(n, "extends_type_clause"); clause != nil {
		for _, typ := range named(clause) {
			ref, sites := p.typeRef(b, typ)
			if ref == nil {
				continue
			}
			site := b.node(structure.KindInheritanceSite, ref.Name(), typ)
			site.Target = ref
			site.Append(sites...)
			def.Append(site)
		}
	}
	for _, member := range named(n.ChildByFieldName("body")) {
		switch member.Kind() {
		case "method_signature":
			p.extractFunction(b, member, b.fieldText(member, "name"), def)
		case "property_signature":
			// Interface properties are members of a trait, not fields of a type.
			_, sites := p.typeRef(b, member.ChildByFieldName("type"))
			def.Append(sites...)
		}
	}
	parent.Append(def)
}

func (p *typeScriptParser) addField(b *builder, n *sitter.Node, def *structure.Node) {
	field := b.node(structure.KindFieldDecl, b.fieldText(n, "name"), n)
	ref, sites := p.typeRef(b, n.ChildByFieldName("type"))
	field.TypeAnnotation = ref
	field.Append(sites...)
	def.Append(field)
	if value := n.ChildByFieldName("value"); value != nil {
		p.visit(b, value, def)
	}
}

// parameterProperties converts `constructor(private repo: Repo)` parameters
// into fields of the class.
func (p *typeScriptParser) parameterProperties(b *builder, ctor *sitter.Node, def *structure.Node) {
	for _, param := range named(ctor.ChildByFieldName("parameters")) {
		if findChildByType(param, "accessibility_modifier") == nil && findChildByType(param, "readonly") == nil {
			continue
		}
		field := b.node(structure.KindFieldDecl, b.fieldText(param, "pattern"), param)
		ref, sites := p.typeRef(b, param.ChildByFieldName("type"))
		field.TypeAnnotation = ref
		field.Append(sites...)
		def.Append(field)
	}
}

// extractFunction converts functions, methods and signatures.
func (p *typeScriptParser) extractFunction(b *builder, n *sitter.Node, name string, parent *structure.Node) *structure.Node {
	fn := b.node(structure.KindFunctionDef, name, n)
	fn.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	for _, param := range named(n.ChildByFieldName("parameters")) {
		_, sites := p.typeRef(b, param.ChildByFieldName("type"))
		fn.Append(sites...)
	}
	_, sites := p.typeRef(b, n.ChildByFieldName("return_type"))
	fn.Append(sites...)
	p.children(b, n.ChildByFieldName("body"), fn)
	parent.Append(fn)
	return fn
}

// extractDeclarator converts a variable declarator. Function valued
// declarators become functions; annotated ones become bindings.
func (p *typeScriptParser) extractDeclarator(b *builder, n *sitter.Node, parent *structure.Node) {
	value := n.ChildByFieldName("value")
	if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression" || value.Kind() == "function") {
		fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
		fn.Generics = p.typeParams(b, value.ChildByFieldName("type_parameters"))
		for _, param := range named(value.ChildByFieldName("parameters")) {
			_, sites := p.typeRef(b, param.ChildByFieldName("type"))
			fn.Append(sites...)
		}
		_, sites := p.typeRef(b, value.ChildByFieldName("return_type"))
		fn.Append(sites...)
		p.visit(b, value.ChildByFieldName("body"), fn)
		parent.Append(fn)
		return
	}
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		if value != nil {
			p.visit(b, value, parent)
		}
		return
	}
	binding := b.node(structure.KindVariableBinding, b.fieldText(n, "name"), n)
	ref, sites := p.typeRef(b, typeNode)
	binding.TypeAnnotation = ref
	binding.Append(sites...)
	if value != nil {
		p.visit(b, value, binding)
	}
	parent.Append(binding)
}

// extractImport converts named, default and namespace imports.
func (p *typeScriptParser) extractImport(b *builder, n *sitter.Node, parent *structure.Node) {
	module := modulePathSegments(strings.Trim(b.fieldText(n, "source"), `"'`+"`"))
	clause := findChildByType(n, "import_clause")
	for _, child := range named(clause) {
		switch child.Kind() {
		case "identifier":
			parent.Append(p.importDecl(b, child, b.text(child), append(append([]string{}, module...), "default")))
		case "namespace_import":
			if id := findChildByType(child, "identifier"); id != nil {
				parent.Append(p.importDecl(b, id, b.text(id), module))
			}
		case "named_imports":
			for _, spec := range named(child) {
				if spec.Kind() != "import_specifier" {
					continue
				}
				name := b.fieldText(spec, "name")
				alias := b.fieldText(spec, "alias")
				if alias == "" {
					alias = name
				}
				parent.Append(p.importDecl(b, spec, alias, append(append([]string{}, module...), name)))
			}
		}
	}
}

func (p *typeScriptParser) importDecl(b *builder, n *sitter.Node, alias string, path []string) *structure.Node {
	decl := b.node(structure.KindImportDecl, alias, n)
	decl.Target = b.ref(n, path, false)
	return decl
}

// extractCall converts `Type.method(...)` calls.
func (p *typeScriptParser) extractCall(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil && fn.Kind() == "member_expression" {
		object := fn.ChildByFieldName("object")
		if path := p.expressionPath(b, object); len(path) > 0 && isTypeName(path[len(path)-1]) {
			call := b.node(structure.KindCallExpr, b.fieldText(fn, "property"), n)
			call.Target = b.ref(object, path, false)
			p.children(b, n.ChildByFieldName("arguments"), call)
			parent.Append(call)
			return
		}
	}
	p.children(b, n, parent)
}

// extractNew converts `new Type(...)` into a constructor call.
func (p *typeScriptParser) extractNew(b *builder, n *sitter.Node, parent *structure.Node) {
	ctor := n.ChildByFieldName("constructor")
	path := p.expressionPath(b, ctor)
	if len(path) == 0 {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, "new", n)
	call.Target = b.ref(ctor, path, false)
	p.children(b, n.ChildByFieldName("arguments"), call)
	parent.Append(call)
}

// expressionPath returns the segments of an identifier or dotted member
// chain, or nil for anything else.
func (p *typeScriptParser) expressionPath(b *builder, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		return []string{b.text(n)}
	case "member_expression", "nested_identifier", "nested_type_identifier":
		segs := structure.SplitPath(b.text(n), ".")
		for _, s := range segs {
			if !isIdentifier(s) || s == "this" {
				return nil
			}
		}
		return segs
	}
	return nil
}

func (p *typeScriptParser) typeParams(b *builder, n *sitter.Node) []structure.NameRef {
	var params []structure.NameRef
	for _, param := range named(n) {
		if nameNode := param.ChildByFieldName("name"); nameNode != nil {
			params = appendRef(params, b.ref(nameNode, []string{b.text(nameNode)}, false))
		}
	}
	return params
}

// typeRef converts a type expression into a head reference and its
// GenericArgSite nodes.
func (p *typeScriptParser) typeRef(b *builder, n *sitter.Node) (*structure.NameRef, []*structure.Node) {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil, nil
	}
	switch n.Kind() {
	case "type_annotation", "parenthesized_type", "readonly_type", "opting_type_annotation", "omitting_type_annotation":
		kids := named(n)
		if len(kids) == 0 {
			return nil, nil
		}
		return p.typeRef(b, kids[len(kids)-1])
	case "type_identifier", "identifier":
		return b.ref(n, []string{b.text(n)}, false), nil
	case "predefined_type", "literal_type", "this_type":
		return b.ref(n, []string{b.text(n)}, true), nil
	case "nested_type_identifier":
		return b.ref(n, structure.SplitPath(b.text(n), "."), false), nil
	case "generic_type":
		head, _ := p.typeRef(b, n.ChildByFieldName("name"))
		var args []*structure.NameRef
		var nested []*structure.Node
		for _, arg := range named(n.ChildByFieldName("type_arguments")) {
			ref, sites := p.typeRef(b, arg)
			args = append(args, ref)
			nested = append(nested, sites...)
		}
		return head, b.genericSite(n, head, args, nested)
	case "array_type":
		kids := named(n)
		if len(kids) == 0 {
			return nil, nil
		}
		return p.typeRef(b, kids[0])
	case "union_type", "intersection_type":
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

// modulePathSegments normalizes an import specifier such as "../models/user"
// into path segments without relative markers or extension.
func modulePathSegments(spec string) []string {
	spec = strings.TrimSuffix(spec, path.Ext(spec))
	var out []string
	for _, seg := range strings.Split(spec, "/") {
		switch seg {
		case "", ".", "..":
			continue
		}
		out = append(out, seg)
	}
	return out
}

// isIdentifier reports whether s is a plain identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
