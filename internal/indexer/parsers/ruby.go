package parsers

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

var rubyLanguage = Language{
	Name:       "ruby",
	Extensions: []string{".rb"},
	Prelude: map[string]string{
		"Object":        "ruby::Object",
		"BasicObject":   "ruby::BasicObject",
		"String":        "ruby::String",
		"Integer":       "ruby::Integer",
		"Float":         "ruby::Float",
		"Array":         "ruby::Array",
		"Hash":          "ruby::Hash",
		"Symbol":        "ruby::Symbol",
		"Struct":        "ruby::Struct",
		"Comparable":    "ruby::Comparable",
		"Enumerable":    "ruby::Enumerable",
		"Kernel":        "ruby::Kernel",
		"StandardError": "ruby::StandardError",
		"Exception":     "ruby::Exception",
		"Time":          "ruby::Time",
		"Proc":          "ruby::Proc",
		"Class":         "ruby::Class",
		"Module":        "ruby::Module",
		"File":          "ruby::File",
		"Dir":           "ruby::Dir",
		"Set":           "ruby::Set",
	},
}

// rubyMixins are the calls that mix a module into a class.
var rubyMixins = map[string]bool{"include": true, "prepend": true, "extend": true}

// rubyParser parses Ruby files.
type rubyParser struct {
	*treeSitterParser
}

// NewRubyParser creates a new Ruby parser.
func NewRubyParser(opts ...Option) Adapter {
	lang := sitter.NewLanguage(ruby.Language())
	return &rubyParser{
		treeSitterParser: newTreeSitterParser(lang, rubyLanguage, opts),
	}
}

// Parse parses a Ruby source file.
func (p *rubyParser) Parse(ctx context.Context, filePath string, source []byte) (*Result, error) {
	return p.parse(ctx, filePath, source, p.children)
}

func (p *rubyParser) children(b *builder, n *sitter.Node, parent *structure.Node) {
	for _, child := range named(n) {
		p.visit(b, child, parent)
	}
}

func (p *rubyParser) visit(b *builder, n *sitter.Node, parent *structure.Node) {
	switch n.Kind() {
	case "class":
		p.extractDefinition(b, n, structure.KindTypeDef, parent)
	case "module":
		// Modules serve as mixins, so they are treated as traits.
		p.extractDefinition(b, n, structure.KindTraitDef, parent)
	case "method", "singleton_method":
		fn := b.node(structure.KindFunctionDef, b.fieldText(n, "name"), n)
		p.body(b, n, fn)
		parent.Append(fn)
	case "call":
		p.extractCall(b, n, parent)
	case "comment":
	default:
		p.children(b, n, parent)
	}
}

// extractDefinition converts classes and modules.
func (p *rubyParser) extractDefinition(b *builder, n *sitter.Node, kind structure.NodeKind, parent *structure.Node) {
	nameNode := n.ChildByFieldName("name")
	path := structure.SplitPath(b.text(nameNode))
	if len(path) == 0 {
		p.children(b, n, parent)
		return
	}
	def := b.node(kind, path[len(path)-1], n)
	if superclass := n.ChildByFieldName("superclass"); superclass != nil {
		for _, expr := range named(superclass) {
			if ref := p.constantRef(b, expr); ref != nil {
				site := b.node(structure.KindInheritanceSite, ref.Name(), expr)
				site.Target = ref
				def.Append(site)
			}
		}
	}
	p.body(b, n, def)
	parent.Append(def)
}

// body converts the statements of a class, module or method body.
func (p *rubyParser) body(b *builder, n *sitter.Node, parent *structure.Node) {
	if body := n.ChildByFieldName("body"); body != nil {
		p.children(b, body, parent)
		return
	}
	skip := []*sitter.Node{n.ChildByFieldName("name"), n.ChildByFieldName("superclass"), n.ChildByFieldName("parameters"), n.ChildByFieldName("object")}
	for _, child := range named(n) {
		skipped := false
		for _, s := range skip {
			if sameNode(child, s) {
				skipped = true
			}
		}
		if !skipped {
			p.visit(b, child, parent)
		}
	}
}

// extractCall converts mixins and `Const.method` calls.
func (p *rubyParser) extractCall(b *builder, n *sitter.Node, parent *structure.Node) {
	receiver := n.ChildByFieldName("receiver")
	method := b.fieldText(n, "method")

	if receiver == nil && rubyMixins[method] && parent.Kind == structure.KindTypeDef {
		for _, arg := range named(n.ChildByFieldName("arguments")) {
			if ref := p.constantRef(b, arg); ref != nil {
				impl := b.node(structure.KindImplBlock, parent.Name, arg)
				impl.TypeAnnotation = ref
				parent.Append(impl)
			}
		}
		return
	}

	ref := p.constantRef(b, receiver)
	if ref == nil {
		p.children(b, n, parent)
		return
	}
	call := b.node(structure.KindCallExpr, method, n)
	call.Target = ref
	p.children(b, n.ChildByFieldName("arguments"), call)
	p.children(b, n.ChildByFieldName("block"), call)
	parent.Append(call)
}

// constantRef converts a constant or scope resolution into a reference.
func (p *rubyParser) constantRef(b *builder, n *sitter.Node) *structure.NameRef {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "constant":
		return b.ref(n, []string{b.text(n)}, false)
	case "scope_resolution":
		path := structure.SplitPath(b.text(n))
		if len(path) == 0 || !isTypeName(path[len(path)-1]) {
			return nil
		}
		return b.ref(n, path, false)
	}
	return nil
}
