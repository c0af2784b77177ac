// Package structure defines the language-neutral syntax tree produced by the
// language adapters and consumed by the pattern matcher.
package structure

import (
	"strings"
)

// NodeKind identifies the normalized construct a Node represents.
type NodeKind string

const (
	// KindSourceFile is the root of every tree. Its Name is the module path.
	KindSourceFile NodeKind = "SourceFile"
	// KindModuleDef is an inline module or namespace that opens a scope.
	KindModuleDef NodeKind = "ModuleDef"
	// KindImportDecl binds a local alias (Name) to an imported path (Target).
	// A Name of "*" marks a wildcard import of everything under Target.
	KindImportDecl NodeKind = "ImportDecl"

	KindTypeDef         NodeKind = "TypeDef"
	KindTraitDef        NodeKind = "TraitDef"
	KindImplBlock       NodeKind = "ImplBlock"
	KindFunctionDef     NodeKind = "FunctionDef"
	KindFieldDecl       NodeKind = "FieldDecl"
	KindVariableBinding NodeKind = "VariableBinding"
	KindCallExpr        NodeKind = "CallExpr"
	KindGenericArgSite  NodeKind = "GenericArgSite"

	// KindInheritanceSite is a supertype clause inside a TypeDef or TraitDef.
	KindInheritanceSite NodeKind = "InheritanceSite"
)

// WildcardImport is the Name of an ImportDecl that imports every member of
// its Target path.
const WildcardImport = "*"

// Position is a 1-based line and column. Columns count bytes.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Span locates a construct in a source file.
type Span struct {
	File      string   `json:"file" yaml:"file"`
	StartByte int      `json:"start_byte" yaml:"start_byte"`
	EndByte   int      `json:"end_byte" yaml:"end_byte"`
	Start     Position `json:"start" yaml:"start"`
	End       Position `json:"end" yaml:"end"`
}

// Contains reports whether other lies within s.
func (s Span) Contains(other Span) bool {
	return s.File == other.File && s.StartByte <= other.StartByte && other.EndByte <= s.EndByte
}

// Before orders spans by file then start offset then end offset.
func (s Span) Before(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.StartByte != other.StartByte {
		return s.StartByte < other.StartByte
	}
	return s.EndByte < other.EndByte
}

// Slice returns the bytes of source covered by the span.
func (s Span) Slice(source []byte) []byte {
	if s.StartByte < 0 || s.EndByte > len(source) || s.StartByte > s.EndByte {
		return nil
	}
	return source[s.StartByte:s.EndByte]
}

// NameRef is a reference to a named type as written in source. Qualified
// names are split into segments whatever separator the language uses.
type NameRef struct {
	Path      []string `json:"path" yaml:"path"`
	Span      Span     `json:"span" yaml:"span"`
	Primitive bool     `json:"primitive,omitempty" yaml:"primitive,omitempty"`
}

// Name returns the last path segment.
func (r NameRef) Name() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// String renders the path with "::" separators.
func (r NameRef) String() string {
	return strings.Join(r.Path, PathSeparator)
}

// IsZero reports whether the reference names nothing.
func (r NameRef) IsZero() bool {
	return len(r.Path) == 0
}

// Node is one construct in a normalized tree.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Span     Span     `json:"span"`
	Children []*Node  `json:"children,omitempty"`

	// TypeAnnotation is the declared type of a FieldDecl or VariableBinding,
	// or the implemented trait of an ImplBlock.
	TypeAnnotation *NameRef `json:"type_annotation,omitempty"`

	// Target is the implementing type of an ImplBlock, the type path of a
	// CallExpr, the container of a GenericArgSite, the supertype of an
	// InheritanceSite or the imported path of an ImportDecl.
	Target *NameRef `json:"target,omitempty"`

	// Generics holds declared type parameters on definitions and the type
	// arguments of a GenericArgSite.
	Generics []NameRef `json:"generics,omitempty"`

	// Language is set on the SourceFile root only.
	Language string `json:"language,omitempty"`
}

// NewNode creates a node of the given kind.
func NewNode(kind NodeKind, name string, span Span) *Node {
	return &Node{Kind: kind, Name: name, Span: span}
}

// Append adds children in source order and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Walk visits n and its descendants depth-first. Returning false from visit
// skips the node's children.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// Count returns the number of nodes of the given kind in the tree.
func (n *Node) Count(kind NodeKind) int {
	count := 0
	n.Walk(func(c *Node) bool {
		if c.Kind == kind {
			count++
		}
		return true
	})
	return count
}
