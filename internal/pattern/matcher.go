package pattern

import (
	"iter"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// selfName is the normalized spelling of the enclosing type.
const selfName = "Self"

// Match returns the usage patterns in the tree rooted at root, in document
// order. The sequence is lazy: nodes are visited only as events are pulled,
// and stopping early abandons the walk. Each call to the returned sequence
// starts a fresh walk.
func Match(root *structure.Node, filePath string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if root == nil {
			return
		}
		m := &matcher{module: root.Name, yield: yield}
		if m.module == "" {
			m.module = structure.ModulePath(filePath)
		}
		m.visit(root, nil)
	}
}

// Collect drains Match into a slice.
func Collect(root *structure.Node, filePath string) []Event {
	var events []Event
	for ev := range Match(root, filePath) {
		events = append(events, ev)
	}
	return events
}

// frame is one open scope during the walk.
type frame struct {
	id      string
	node    *structure.Node
	subject Ref             // Subject of bindings and calls made in this scope
	self    *Ref            // What Self means here; nil when it means nothing concrete
	params  map[string]bool // Type parameters declared on the scope
}

type matcher struct {
	module string
	yield  func(Event) bool
}

// visit walks n and its children. It returns false once the consumer has
// stopped pulling events.
func (m *matcher) visit(n *structure.Node, scopes []*frame) bool {
	if f := m.open(n, scopes); f != nil {
		scopes = append(scopes[:len(scopes):len(scopes)], f)
	}
	if !m.match(n, scopes) {
		return false
	}
	for _, c := range n.Children {
		if !m.visit(c, scopes) {
			return false
		}
	}
	return true
}

// open creates the frame for a node that opens a scope.
func (m *matcher) open(n *structure.Node, scopes []*frame) *frame {
	name, ok := structure.ScopeName(n)
	if !ok && n.Kind != structure.KindSourceFile {
		return nil
	}

	var id string
	if n.Kind == structure.KindSourceFile {
		id, name = m.module, m.module
	} else {
		parent := m.module
		if len(scopes) > 0 {
			parent = scopes[len(scopes)-1].id
		}
		id = structure.QualifiedID(parent, name)
	}

	f := &frame{id: id, node: n, params: typeParams(n.Generics)}

	switch n.Kind {
	case structure.KindImplBlock:
		target := m.object(n.Target, scopes)
		if target != nil && len(target.Path) == 1 && f.params[target.Path[0]] {
			target = nil
		}
		if target == nil {
			// impl for a primitive or a type parameter; keep the scope but
			// fall back to the enclosing subject
			if len(scopes) == 0 {
				return nil
			}
			f.subject = scopes[len(scopes)-1].subject
			return f
		}
		f.subject = *target
		f.self = target
	default:
		kind, _ := graph.SymbolKindOf(n.Kind)
		f.subject = Ref{Path: []string{name}, Span: n.Span, Declared: id, DeclaredKind: kind}
		if n.Kind == structure.KindTypeDef {
			self := f.subject
			f.self = &self
		}
	}
	return f
}

// match applies the rule for n, if any. Rules are keyed on node kind so at
// most one applies per node.
func (m *matcher) match(n *structure.Node, scopes []*frame) bool {
	switch n.Kind {
	case structure.KindTypeDef, structure.KindTraitDef:
		if n.Name == "" {
			return true
		}
		return m.emit(graph.KindDefinition, scopes[len(scopes)-1].subject, nil, n.Span, scopes)

	case structure.KindImplBlock:
		if n.TypeAnnotation == nil {
			return true
		}
		trait := m.object(n.TypeAnnotation, scopes)
		if trait == nil {
			return true
		}
		var subject *Ref
		if n.Target != nil && !n.Target.IsZero() {
			subject = scopes[len(scopes)-1].self
		} else {
			subject = m.enclosingType(scopes)
		}
		if subject == nil {
			return true
		}
		return m.emit(graph.KindTraitImplementation, *subject, trait, n.Span, scopes)

	case structure.KindFieldDecl:
		owner := m.enclosingType(scopes)
		if owner == nil {
			return true
		}
		return m.relate(graph.KindComposition, *owner, n.TypeAnnotation, n.Span, scopes)

	case structure.KindVariableBinding:
		return m.relate(graph.KindTypedBinding, m.scopeSubject(scopes), n.TypeAnnotation, n.Span, scopes)

	case structure.KindCallExpr:
		return m.relate(graph.KindStaticCall, m.scopeSubject(scopes), n.Target, n.Span, scopes)

	case structure.KindGenericArgSite:
		container := m.object(n.Target, scopes)
		if container == nil {
			return true
		}
		for i := range n.Generics {
			if !m.relate(graph.KindGenericInstantiation, *container, &n.Generics[i], n.Span, scopes) {
				return false
			}
		}
		return true

	case structure.KindInheritanceSite:
		owner := m.enclosingDecl(scopes)
		if owner == nil {
			return true
		}
		return m.relate(graph.KindInheritance, *owner, n.Target, n.Span, scopes)
	}
	return true
}

// relate emits a subject/object event when the object survives filtering.
func (m *matcher) relate(kind graph.Kind, subject Ref, object *structure.NameRef, site structure.Span, scopes []*frame) bool {
	obj := m.object(object, scopes)
	if obj == nil {
		return true
	}
	return m.emit(kind, subject, obj, site, scopes)
}

func (m *matcher) emit(kind graph.Kind, subject Ref, object *Ref, site structure.Span, scopes []*frame) bool {
	chain := make([]string, 0, len(scopes)+1)
	for i := len(scopes) - 1; i >= 0; i-- {
		chain = append(chain, scopes[i].id)
	}
	if len(chain) == 0 || chain[len(chain)-1] != m.module {
		chain = append(chain, m.module)
	}
	return m.yield(Event{Kind: kind, Subject: subject, Object: object, Site: site, Scope: chain})
}

// object turns a written type reference into an event object. Primitives,
// type parameters in scope and members of Self are dropped.
func (m *matcher) object(r *structure.NameRef, scopes []*frame) *Ref {
	if r == nil || r.IsZero() || r.Primitive {
		return nil
	}
	if r.Path[0] == selfName {
		if len(r.Path) > 1 {
			return nil
		}
		self := m.currentSelf(scopes)
		if self == nil {
			return nil
		}
		out := *self
		out.Span = r.Span
		return &out
	}
	if len(r.Path) == 1 && isTypeParam(r.Path[0], scopes) {
		return nil
	}
	return &Ref{Path: r.Path, Span: r.Span}
}

// currentSelf returns what Self means in the innermost scope that defines it.
func (m *matcher) currentSelf(scopes []*frame) *Ref {
	for i := len(scopes) - 1; i >= 0; i-- {
		f := scopes[i]
		switch f.node.Kind {
		case structure.KindTraitDef:
			return nil
		case structure.KindImplBlock, structure.KindTypeDef:
			return f.self
		}
	}
	return nil
}

// enclosingType returns the innermost TypeDef, or the implementing type of
// the innermost impl block.
func (m *matcher) enclosingType(scopes []*frame) *Ref {
	for i := len(scopes) - 1; i >= 0; i-- {
		switch scopes[i].node.Kind {
		case structure.KindTypeDef:
			return &scopes[i].subject
		case structure.KindImplBlock:
			return scopes[i].self
		case structure.KindFunctionDef, structure.KindModuleDef, structure.KindSourceFile, structure.KindTraitDef:
			return nil
		}
	}
	return nil
}

// enclosingDecl returns the innermost TypeDef or TraitDef.
func (m *matcher) enclosingDecl(scopes []*frame) *Ref {
	if len(scopes) == 0 {
		return nil
	}
	switch f := scopes[len(scopes)-1]; f.node.Kind {
	case structure.KindTypeDef, structure.KindTraitDef:
		return &f.subject
	}
	return nil
}

// scopeSubject returns the subject for bindings and calls: the innermost
// enclosing scope.
func (m *matcher) scopeSubject(scopes []*frame) Ref {
	if len(scopes) == 0 {
		return Ref{Path: []string{m.module}, Declared: m.module, DeclaredKind: graph.SymbolModule}
	}
	return scopes[len(scopes)-1].subject
}

func isTypeParam(name string, scopes []*frame) bool {
	for i := len(scopes) - 1; i >= 0; i-- {
		if scopes[i].params[name] {
			return true
		}
	}
	return false
}

func typeParams(generics []structure.NameRef) map[string]bool {
	if len(generics) == 0 {
		return nil
	}
	params := make(map[string]bool, len(generics))
	for _, g := range generics {
		params[g.Name()] = true
	}
	return params
}
