package parsers

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var rustLanguage = Language{
	Name:       "rust",
	Extensions: []string{".rs"},
	Prelude: map[string]string{
		"Vec":          "std::vec::Vec",
		"String":       "std::string::String",
		"Option":       "std::option::Option",
		"Result":       "std::result::Result",
		"Box":          "std::boxed::Box",
		"ToString":     "std::string::ToString",
		"ToOwned":      "std::borrow::ToOwned",
		"Clone":        "std::clone::Clone",
		"Copy":         "std::marker::Copy",
		"Send":         "std::marker::Send",
		"Sync":         "std::marker::Sync",
		"Sized":        "std::marker::Sized",
		"Default":      "std::default::Default",
		"Drop":         "std::ops::Drop",
		"Fn":           "std::ops::Fn",
		"FnMut":        "std::ops::FnMut",
		"FnOnce":       "std::ops::FnOnce",
		"Iterator":     "std::iter::Iterator",
		"IntoIterator": "std::iter::IntoIterator",
		"PartialEq":    "std::cmp::PartialEq",
		"Eq":           "std::cmp::Eq",
		"PartialOrd":   "std::cmp::PartialOrd",
		"Ord":          "std::cmp::Ord",
		"From":         "std::convert::From",
		"Into":         "std::convert::Into",
		"TryFrom":      "std::convert::TryFrom",
		"TryInto":      "std::convert::TryInto",
		"AsRef":        "std::convert::AsRef",
		"AsMut":        "std::convert::AsMut",
		"Debug":        "std::fmt::Debug",
		"Hash":         "std::hash::Hash",
	},
}

// rustParser parses Rust files.
type rustParser struct {
	*treeSitterParser
}

// NewRustParser creates a new Rust parser.
func NewRustParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(rust.Language())
	return &rustParser{
		treeSitterParser: newTreeSitterParser(lang, rustLanguage, opts),
	}
}

// Parse parses a Rust source file.
func (p *rustParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

// children converts the named children of n into parent.
func (p *rustParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

// visit converts a single node.
func (p *rustParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "struct_item", "union_item", "enum_item":
		p.extractType(b, n, parent)
	case "type_item":
		p.extractAlias(b, n, parent)
	case "trait_item":
		p.extractTrait(b, n, parent)
	case "impl_item":
		p.extractImpl(b, n, parent)
	case "function_item", "function_signature_item":
		p.extractFunction(b, n, parent)
	case "mod_item":
		mod := b.node(structure.KindModuleDef, b.fieldText(n, "name"), n)
		p.children(b, n.ChildByFieldName("body"), mod)
		parent.Append(mod)
	case "use_declaration":
		p.extractUse(b, n.ChildByFieldName("argument"), nil, parent)
	case "let_declaration":
		p.extractLet(b, n, parent)
	case "const_item", "static_item":
		p.extractStatic(b, n, parent)
	case "call_expression":
		p.extractCall(b, n, parent)
	case "macro_invocation", "attribute_item", "inner_attribute_item", "line_comment", "block_comment":
		// Token trees are not parsed.
	default:
		p.children(b, n, parent)
	}
}

// extractType converts structs, unions and enums.
func (p *rustParser) extractType(b *builder, n *sitter.Node, parent *structure.Node) {
	def := b.node(structure.KindTypeDef, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	p.extractFields(b, n.ChildByFieldName("body"), "", def)
	parent.Append(def)
}

// extractFields converts named, positional and enum variant fields.
func (p *rustParser) extractFields(b *builder, body *sitter.Node, prefix string, def *structure.Node) {
	if body == nil {
		return
	}
	switch body.Kind() {
	case "field_declaration_list":
		for _, field := range named(body) {
			if field.Kind() != "field_declaration" {
				continue
			}
			p.addField(b, field, prefix+b.fieldText(field, "name"), field.ChildByFieldName("type"), def)
		}
	case "ordered_field_declaration_list":
		index := 0
		for _, child := range named(body) {
			switch child.Kind() {
			case "attribute_item", "visibility_modifier":
				continue
			}
			p.addField(b, child, prefix+strconv.Itoa(index), child, def)
			index++
		}
	case "enum_variant_list":
		for _, variant := range named(body) {
			if variant.Kind() != "enum_variant" {
				continue
			}
			p.extractFields(b, variant.ChildByFieldName("body"), b.fieldText(variant, "name")+".", def)
		}
	}
}

func (p *rustParser) addField(b *builder, n *sitter.Node, name string, typeNode *sitter.Node, def *structure.Node) {
	field := b.node(structure.KindFieldDecl, name, n)
	ref, sites := p.typeRef(b, typeNode)
	field.TypeAnnotation = ref
	field.Append(sites...)
	def.Append(field)
}

// extractAlias converts `type Name<T> = Target;`.
func (p *rustParser) extractAlias(b *builder, n *sitter.Node, parent *structure.Node) {
	def := b.node(structure.KindTypeDef, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	_, sites := p.typeRef(b, n.ChildByFieldName("type"))
	def.Append(sites...)
	parent.Append(def)
}

// extractTrait converts a trait with its supertraits and items.
func (p *rustParser) extractTrait(b *builder, n *sitter.Node, parent *structure.Node) {
	def := b.node(structure.KindTraitDef, b.fieldText(n, "name"), n)
	def.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	for _, bound := range named(n.ChildByFieldName("bounds")) {
		ref, sites := p.typeRef(b, bound)
		if ref == nil || ref.Primitive {
			continue
		}
		site := b.node(structure.KindInheritanceSite, ref.Name(), bound)
		site.Target = ref
		site.Append(sites...)
		def.Append(site)
	}
	p.children(b, n.ChildByFieldName("body"), def)
	parent.Append(def)
}

// extractImpl converts inherent and trait impl blocks.
func (p *rustParser) extractImpl(b *builder, n *sitter.Node, parent *structure.Node) {
	target, targetSites := p.typeRef(b, n.ChildByFieldName("type"))
	if target == nil {
		p.children(b, n.ChildByFieldName("body"), parent)
		return
	}
	impl := b.node(structure.KindImplBlock, target.Name(), n)
	impl.Target = target
	impl.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	if traitNode := n.ChildByFieldName("trait"); traitNode != nil && !p.negativeImpl(b, n) {
		trait, traitSites := p.typeRef(b, traitNode)
		impl.TypeAnnotation = trait
		impl.Append(traitSites...)
	}
	impl.Append(targetSites...)
	p.children(b, n.ChildByFieldName("body"), impl)
	parent.Append(impl)
}

// negativeImpl reports `impl !Trait for T`.
func (p *rustParser) negativeImpl(b *builder, n *sitter.Node) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == "!" {
			return true
		}
	}
	return false
}

// extractFunction converts free functions, methods and trait signatures.
func (p *rustParser) extractFunction(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
	fn.Generics = p.typeParams(b, n.ChildByFieldName("type_parameters"))
	for _, param := range named(n.ChildByFieldName("parameters")) {
		if param.Kind() != "parameter" {
			continue
		}
		_, sites := p.typeRef(b, param.ChildByFieldName("type"))
		fn.Append(sites...)
	}
	_, sites := p.typeRef(b, n.ChildByFieldName("return_type"))
	fn.Append(sites...)
	p.children(b, n.ChildByFieldName("body"), fn)
	parent.Append(fn)
}

// extractUse converts a use tree into ImportDecl nodes.
func (p *rustParser) extractUse(b *builder, n *sitter.Node, prefix []string, parent *structure.Node) {
	if n == nil {
		return
	}
	join := func(text string) []string {
		out := append([]string{}, prefix...)
		return append(out, structure.SplitPath(text)...)
	}
	switch n.Kind() {
	case "identifier", "scoped_identifier", "crate", "super", "self", "metavariable":
		path := join(b.text(n))
		alias := path[len(path)-1]
		if alias == "self" && len(path) > 1 {
			path = path[:len(path)-1]
			alias = path[len(path)-1]
		}
		parent.Append(p.importDecl(b, n, alias, path))
	case "use_as_clause":
		path := join(b.fieldText(n, "path"))
		parent.Append(p.importDecl(b, n, b.fieldText(n, "alias"), path))
	case "scoped_use_list":
		next := prefix
		if pathNode := n.ChildByFieldName("path"); pathNode != nil {
			next = join(b.text(pathNode))
		}
		p.extractUse(b, n.ChildByFieldName("list"), next, parent)
	case "use_list":
		for _, child := range named(n) {
			p.extractUse(b, child, prefix, parent)
		}
	case "use_wildcard":
		path := join(strings.TrimSuffix(strings.TrimSpace(b.text(n)), "*"))
		parent.Append(p.importDecl(b, n, structure.WildcardImport, path))
	}
}

func (p *rustParser) importDecl(b *builder, n *sitter.Node, alias string, path []string) *structure.Node {
	decl := b.node(structure.KindImportDecl, alias, n)
	decl.Target = b.ref(n, path, false)
	return decl
}

// extractLet converts a let statement. Only annotated bindings become
// VariableBinding nodes.
func (p *rustParser) extractLet(b *builder, n *sitter.Node, parent *structure.Node) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		if value := n.ChildByFieldName("value"); value != nil {
			p.visit(b, value, parent)
		}
		p.children(b, n.ChildByFieldName("alternative"), parent)
		return
	}
	name := strings.TrimPrefix(b.fieldText(n, "pattern"), "mut ")
	binding := b.node(structure.KindVariableBinding, name, n)
	ref, sites := p.typeRef(b, typeNode)
	binding.TypeAnnotation = ref
	binding.Append(sites...)
	if value := n.ChildByFieldName("value"); value != nil {
		p.visit(b, value, binding)
	}
	p.children(b, n.ChildByFieldName("alternative"), binding)
	parent.Append(binding)
}

// extractStatic converts const and static items.
func (p *rustParser) extractStatic(b *builder, n *sitter.Node, parent *structure.Node) {
	binding := b.node(structure.KindVariableBinding, b.fieldText(n, "name"), n)
	ref, sites := p.typeRef(b, n.ChildByFieldName("type"))
	binding.TypeAnnotation = ref
	binding.Append(sites...)
	if value := n.ChildByFieldName("value"); value != nil {
		p.visit(b, value, binding)
	}
	parent.Append(binding)
}

// extractCall converts `Type::function(...)` calls. Other calls are walked
// for nested calls only.
func (p *rustParser) extractCall(b *builder, n *sitter.Node, parent *structure.Node) {
	fn := n.ChildByFieldName("function")
	if fn != nil && fn.Kind() == "generic_function" {
		fn = fn.ChildByFieldName("function")
	}
	var call *structure.Node
	if fn != nil && fn.Kind() == "scoped_identifier" {
		if pathNode := fn.ChildByFieldName("path"); pathNode != nil {
			if pathNode.Kind() == "generic_type" {
				pathNode = pathNode.ChildByFieldName("type")
			}
			path := structure.SplitPath(b.text(pathNode))
			if len(path) > 0 && isTypeName(path[len(path)-1]) {
				call = b.node(structure.KindCallExpr, b.fieldText(fn, "name"), n)
				call.Target = b.ref(pathNode, path, false)
			}
		}
	}
	if call == nil {
		if fn != nil && fn.Kind() != "scoped_identifier" && fn.Kind() != "identifier" {
			p.visit(b, fn, parent)
		}
		p.children(b, n.ChildByFieldName("arguments"), parent)
		return
	}
	p.children(b, n.ChildByFieldName("arguments"), call)
	parent.Append(call)
}

// typeParams returns the declared type parameters, skipping lifetimes and
// const parameters.
func (p *rustParser) typeParams(b *builder, n *sitter.Node) []structure.NameRef {
	var params []structure.NameRef
	for _, param := range named(n) {
		var nameNode *sitter.Node
		switch param.Kind() {
		case "lifetime", "lifetime_parameter", "const_parameter", "attribute_item":
			continue
		case "type_identifier":
			nameNode = param
		default:
			nameNode = param.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = param.ChildByFieldName("left")
			}
			if nameNode == nil {
				nameNode = findChildByType(param, "type_identifier")
			}
		}
		if nameNode == nil || nameNode.Kind() == "lifetime" {
			continue
		}
		params = appendRef(params, b.ref(nameNode, []string{b.text(nameNode)}, false))
	}
	return params
}

// typeRef converts a type expression into a reference to its head type and
// the GenericArgSite nodes for every argument list inside it.
func (p *rustParser) typeRef(b *builder, n *sitter.Node) (*structure.NameRef, []*structure.Node) {
	if n == nil || n.IsError() || n.IsMissing() {
		return nil, nil
	}
	switch n.Kind() {
	case "type_identifier", "identifier":
		return b.ref(n, []string{b.text(n)}, false), nil
	case "primitive_type":
		return b.ref(n, []string{b.text(n)}, true), nil
	case "self":
		return b.ref(n, []string{"Self"}, false), nil
	case "scoped_type_identifier", "scoped_identifier":
		return b.ref(n, structure.SplitPath(b.text(n)), false), nil
	case "generic_type":
		head, _ := p.typeRef(b, n.ChildByFieldName("type"))
		var args []*structure.NameRef
		var nested []*structure.Node
		for _, arg := range named(n.ChildByFieldName("type_arguments")) {
			switch arg.Kind() {
			case "lifetime", "block":
				continue
			case "type_binding":
				arg = arg.ChildByFieldName("type")
			}
			ref, sites := p.typeRef(b, arg)
			args = append(args, ref)
			nested = append(nested, sites...)
		}
		return head, b.genericSite(n, head, args, nested)
	case "reference_type", "pointer_type":
		return p.typeRef(b, n.ChildByFieldName("type"))
	case "array_type":
		return p.typeRef(b, n.ChildByFieldName("element"))
	case "dynamic_type", "abstract_type":
		if trait := n.ChildByFieldName("trait"); trait != nil {
			return p.typeRef(b, trait)
		}
	}
	// Tuples, function types and bounds have no single head type.
	var sites []*structure.Node
	for _, child := range named(n) {
		_, childSites := p.typeRef(b, child)
		sites = append(sites, childSites...)
	}
	return nil, sites
}
