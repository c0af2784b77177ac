// Package diag defines the diagnostics recorded while extracting usage
// patterns. Diagnostics never abort a run; they travel with the graph.
package diag

import (
	"fmt"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code classifies a diagnostic.
type Code string

const (
	// CodeParseError marks a file that could not be parsed, or a recovered
	// syntax error inside a file that could.
	CodeParseError Code = "ParseError"
	// CodeAmbiguous marks a reference matching more than one declaration.
	CodeAmbiguous Code = "Ambiguous"
	// CodeUnknown marks a reference matching no declaration.
	CodeUnknown Code = "Unknown"
	// CodeCompositionCycle marks a symbol that is part of a composition cycle.
	CodeCompositionCycle Code = "CompositionCycle"
)

// Diagnostic is one entry of the diagnostics channel.
type Diagnostic struct {
	Severity Severity           `json:"severity" yaml:"severity"`
	Code     Code               `json:"code" yaml:"code"`
	File     string             `json:"file" yaml:"file"`
	Position structure.Position `json:"position" yaml:"position"`
	Message  string             `json:"message" yaml:"message"`
}

// String renders the diagnostic as file:line:col: severity[code]: message.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s", d.File, d.Position.Line, d.Position.Column, d.Severity, d.Code, d.Message)
}

// Errorf builds an error-severity diagnostic.
func Errorf(code Code, file string, pos structure.Position, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, File: file, Position: pos, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity diagnostic.
func Warnf(code Code, file string, pos structure.Position, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, File: file, Position: pos, Message: fmt.Sprintf(format, args...)}
}

// Less orders diagnostics by file, position, code and message.
func Less(a, b Diagnostic) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Position.Line != b.Position.Line {
		return a.Position.Line < b.Position.Line
	}
	if a.Position.Column != b.Position.Column {
		return a.Position.Column < b.Position.Column
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.Message < b.Message
}
