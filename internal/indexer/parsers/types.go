package parsers

import (
	"context"
	"fmt"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// DefaultMaxErrorRatio is the share of source bytes that may sit inside
// syntax error nodes before a file is rejected.
const DefaultMaxErrorRatio = 0.5

// Adapter converts raw source of one language into a normalized tree.
type Adapter interface {
	// Language describes the language handled by the adapter.
	Language() Language

	// Parse parses source. The returned error is always a *ParseError.
	Parse(ctx context.Context, filePath string, source []byte) (*Result, error)
}

// Language describes a supported language.
type Language struct {
	// Name is the language tag used to select the adapter.
	Name string
	// Extensions are the file extensions (with dot) claimed by the language.
	Extensions []string
	// Prelude maps names visible without an import to their canonical
	// external path, "::" separated.
	Prelude map[string]string
}

// Result is the outcome of a successful parse.
type Result struct {
	Root *structure.Node
	// Diagnostics holds recovered syntax errors.
	Diagnostics []diag.Diagnostic
}

// ParseError is returned when a file cannot be turned into a tree.
type ParseError struct {
	FilePath string
	Position structure.Position
	Message  string
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Position.Line, e.Position.Column, e.Message)
}

// Diagnostic converts the error into an error-severity diagnostic.
func (e *ParseError) Diagnostic() diag.Diagnostic {
	return diag.Errorf(diag.CodeParseError, e.FilePath, e.Position, "%s", e.Message)
}

// NewParseError creates a ParseError.
func NewParseError(filePath string, pos structure.Position, format string, args ...any) *ParseError {
	if pos.Line == 0 {
		pos = structure.Position{Line: 1, Column: 1}
	}
	return &ParseError{FilePath: filePath, Position: pos, Message: fmt.Sprintf(format, args...)}
}

// Option configures a tree-sitter backed adapter.
type Option func(*treeSitterParser)

// WithMaxErrorRatio overrides DefaultMaxErrorRatio.
func WithMaxErrorRatio(ratio float64) Option {
	return func(p *treeSitterParser) {
		if ratio > 0 {
			p.maxErrorRatio = ratio
		}
	}
}
