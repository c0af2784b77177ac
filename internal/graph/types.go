package graph

import (
	"strings"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Kind represents the type of a usage pattern.
type Kind string

const (
	KindDefinition           Kind = "Definition"           // A type or trait is declared
	KindTraitImplementation  Kind = "TraitImplementation"  // Type implements trait
	KindComposition          Kind = "Composition"          // Type holds a field of another type
	KindStaticCall           Kind = "StaticCall"           // Scope calls a function through a type path
	KindGenericInstantiation Kind = "GenericInstantiation" // Type is a generic argument of a container
	KindTypedBinding         Kind = "TypedBinding"         // Scope binds a variable annotated with a type
	KindInheritance          Kind = "Inheritance"          // Type extends a supertype
)

// Kinds lists every pattern kind in reporting order.
var Kinds = []Kind{
	KindDefinition,
	KindTraitImplementation,
	KindComposition,
	KindStaticCall,
	KindGenericInstantiation,
	KindTypedBinding,
	KindInheritance,
}

// ParseKind converts a name (case-insensitive) into a Kind.
func ParseKind(name string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), name) {
			return k, true
		}
	}
	return "", false
}

// SymbolKind represents the type of a declared entity.
type SymbolKind string

const (
	SymbolType     SymbolKind = "Type"
	SymbolTrait    SymbolKind = "Trait"
	SymbolFunction SymbolKind = "Function"
	SymbolModule   SymbolKind = "Module"
)

// SymbolKindOf maps a definition node kind to the symbol kind it declares.
func SymbolKindOf(kind structure.NodeKind) (SymbolKind, bool) {
	switch kind {
	case structure.KindTypeDef:
		return SymbolType, true
	case structure.KindTraitDef:
		return SymbolTrait, true
	case structure.KindFunctionDef:
		return SymbolFunction, true
	case structure.KindModuleDef, structure.KindSourceFile:
		return SymbolModule, true
	}
	return "", false
}

// Symbol is a named, addressable declaration.
type Symbol struct {
	ID       string          `json:"id" yaml:"id"`                                 // Qualified id (e.g., "src/shapes::Circle::new")
	Name     string          `json:"name" yaml:"name"`                             // Simple name
	Kind     SymbolKind      `json:"kind" yaml:"kind"`                             // Type of symbol
	Language string          `json:"language,omitempty" yaml:"language,omitempty"` // Language tag of the declaring file
	Span     *structure.Span `json:"span,omitempty" yaml:"span,omitempty"`         // Definition span, nil for external symbols
	External bool            `json:"external,omitempty" yaml:"external,omitempty"` // Bound through an import or prelude only
}

// Reason explains why a reference could not be resolved.
type Reason string

const (
	ReasonAmbiguous Reason = "Ambiguous"
	ReasonUnknown   Reason = "Unknown"
)

// Unresolved is a reference the resolver could not bind to a symbol.
type Unresolved struct {
	Name       string   // Name as written
	Reason     Reason   // Why it did not resolve
	Candidates []string // Competing symbol ids for ambiguous references
}

// Endpoint is one side of a resolved usage pattern: a symbol or an
// unresolved reference.
type Endpoint struct {
	Symbol     *Symbol
	Unresolved *Unresolved
}

// SymbolEndpoint wraps a symbol.
func SymbolEndpoint(s *Symbol) Endpoint {
	return Endpoint{Symbol: s}
}

// UnresolvedEndpoint wraps an unresolved reference.
func UnresolvedEndpoint(name string, reason Reason, candidates ...string) Endpoint {
	return Endpoint{Unresolved: &Unresolved{Name: name, Reason: reason, Candidates: candidates}}
}

// Ref returns the stored form of the endpoint.
func (e Endpoint) Ref() Ref {
	switch {
	case e.Symbol != nil:
		return Ref{ID: e.Symbol.ID}
	case e.Unresolved != nil:
		return Ref{Raw: e.Unresolved.Name, Reason: e.Unresolved.Reason}
	}
	return Ref{}
}

// Event is a resolved usage pattern ready to be merged into a graph.
type Event struct {
	Kind    Kind
	Subject Endpoint
	Object  *Endpoint // nil for Definition
	Site    structure.Span
}

// Ref is a stored edge endpoint: a symbol id, or the raw name of an
// unresolved reference with its reason.
type Ref struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty"`
	Raw    string `json:"raw,omitempty" yaml:"raw,omitempty"`
	Reason Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Resolved reports whether the endpoint names a symbol.
func (r Ref) Resolved() bool {
	return r.ID != ""
}

// String renders the id, or the raw name marked as unresolved.
func (r Ref) String() string {
	if r.ID != "" {
		return r.ID
	}
	return "?" + r.Raw
}

// Edge is a usage pattern stored in a graph.
type Edge struct {
	Kind    Kind           `json:"kind"`
	Subject Ref            `json:"subject"`
	Object  *Ref           `json:"object,omitempty"`
	Site    structure.Span `json:"site"`
}

// edgeKey identifies an edge for deduplication.
type edgeKey struct {
	kind      Kind
	subject   Ref
	object    Ref
	file      string
	startByte int
	endByte   int
}

// Definition edges are keyed on their subject alone so the first site wins,
// matching the symbol's definition span.
func (e Edge) key() edgeKey {
	k := edgeKey{kind: e.Kind, subject: e.Subject}
	if e.Kind != KindDefinition {
		k.file, k.startByte, k.endByte = e.Site.File, e.Site.StartByte, e.Site.EndByte
	}
	if e.Object != nil {
		k.object = *e.Object
	}
	return k
}

// Unresolved reports whether either endpoint is unresolved.
func (e Edge) Unresolved() bool {
	if !e.Subject.Resolved() {
		return true
	}
	return e.Object != nil && !e.Object.Resolved()
}
