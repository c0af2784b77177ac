package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRoot is returned when a tree is not rooted at a SourceFile.
	ErrInvalidRoot = errors.New("tree root must be a SourceFile")
	// ErrSpanNotContained is returned when a child span escapes its parent.
	ErrSpanNotContained = errors.New("child span not contained in parent span")
	// ErrMisplacedField is returned when a FieldDecl is not directly inside a TypeDef.
	ErrMisplacedField = errors.New("field declaration outside a type definition")
)

// Validate checks the structural invariants of a tree produced by an adapter.
func Validate(root *Node) error {
	if root == nil || root.Kind != KindSourceFile {
		return ErrInvalidRoot
	}
	return validateChildren(root)
}

func validateChildren(parent *Node) error {
	for _, child := range parent.Children {
		if !parent.Span.Contains(child.Span) {
			return fmt.Errorf("%w: %s %q at %d:%d in %s %q", ErrSpanNotContained,
				child.Kind, child.Name, child.Span.Start.Line, child.Span.Start.Column, parent.Kind, parent.Name)
		}
		if child.Kind == KindFieldDecl && parent.Kind != KindTypeDef {
			return fmt.Errorf("%w: %q at %d:%d", ErrMisplacedField, child.Name, child.Span.Start.Line, child.Span.Start.Column)
		}
		if err := validateChildren(child); err != nil {
			return err
		}
	}
	return nil
}
