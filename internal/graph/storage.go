package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

const (
	// GraphFileName is the base name of the graph data file
	GraphFileName = "usage-graph"
	// GraphVersion is the current version of the graph format
	GraphVersion = "1.0"
)

// Format is a serialization format for graph data.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrUnknownFormat is returned for an unsupported serialization format.
	ErrUnknownFormat = errors.New("unknown graph format")
	// ErrDanglingEdge is returned when an edge names a symbol that is not in the data.
	ErrDanglingEdge = errors.New("edge references unknown symbol")
)

// Data is the serializable form of a graph.
type Data struct {
	Metadata    Metadata          `json:"_metadata" yaml:"_metadata"`
	Symbols     map[string]Symbol `json:"symbols" yaml:"symbols"`
	Edges       []EdgeRecord      `json:"edges" yaml:"edges"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// Metadata contains metadata about the graph. It carries no timestamps so
// that identical runs produce identical files.
type Metadata struct {
	Version         string `json:"version" yaml:"version"`
	SymbolCount     int    `json:"symbol_count" yaml:"symbol_count"`
	EdgeCount       int    `json:"edge_count" yaml:"edge_count"`
	DiagnosticCount int    `json:"diagnostic_count" yaml:"diagnostic_count"`
}

// EdgeRecord is the flat serialized form of an edge.
type EdgeRecord struct {
	Kind          Kind   `json:"kind" yaml:"kind"`
	SubjectID     string `json:"subject_id,omitempty" yaml:"subject_id,omitempty"`
	SubjectRaw    string `json:"subject_raw,omitempty" yaml:"subject_raw,omitempty"`
	SubjectReason Reason `json:"subject_reason,omitempty" yaml:"subject_reason,omitempty"`
	ObjectID      string `json:"object_id,omitempty" yaml:"object_id,omitempty"`
	ObjectRaw     string `json:"object_raw,omitempty" yaml:"object_raw,omitempty"`
	ObjectReason  Reason `json:"object_reason,omitempty" yaml:"object_reason,omitempty"`
	File          string `json:"file" yaml:"file"`
	StartLine     int    `json:"start_line" yaml:"start_line"`
	StartCol      int    `json:"start_col" yaml:"start_col"`
	EndLine       int    `json:"end_line" yaml:"end_line"`
	EndCol        int    `json:"end_col" yaml:"end_col"`
	StartByte     int    `json:"start_byte" yaml:"start_byte"`
	EndByte       int    `json:"end_byte" yaml:"end_byte"`
}

// Record flattens an edge.
func (e Edge) Record() EdgeRecord {
	r := EdgeRecord{
		Kind:          e.Kind,
		SubjectID:     e.Subject.ID,
		SubjectRaw:    e.Subject.Raw,
		SubjectReason: e.Subject.Reason,
		File:          e.Site.File,
		StartLine:     e.Site.Start.Line,
		StartCol:      e.Site.Start.Column,
		EndLine:       e.Site.End.Line,
		EndCol:        e.Site.End.Column,
		StartByte:     e.Site.StartByte,
		EndByte:       e.Site.EndByte,
	}
	if e.Object != nil {
		r.ObjectID = e.Object.ID
		r.ObjectRaw = e.Object.Raw
		r.ObjectReason = e.Object.Reason
	}
	return r
}

// Edge rebuilds the edge from its flat form.
func (r EdgeRecord) Edge() Edge {
	e := Edge{
		Kind:    r.Kind,
		Subject: Ref{ID: r.SubjectID, Raw: r.SubjectRaw, Reason: r.SubjectReason},
		Site: structure.Span{
			File:      r.File,
			StartByte: r.StartByte,
			EndByte:   r.EndByte,
			Start:     structure.Position{Line: r.StartLine, Column: r.StartCol},
			End:       structure.Position{Line: r.EndLine, Column: r.EndCol},
		},
	}
	if r.ObjectID != "" || r.ObjectRaw != "" {
		e.Object = &Ref{ID: r.ObjectID, Raw: r.ObjectRaw, Reason: r.ObjectReason}
	}
	return e
}

// Data converts the graph into its serializable form.
func (g *Graph) Data() *Data {
	data := &Data{
		Metadata: Metadata{
			Version:         GraphVersion,
			SymbolCount:     len(g.symbols),
			EdgeCount:       len(g.edges),
			DiagnosticCount: len(g.diagnostics),
		},
		Symbols:     make(map[string]Symbol, len(g.symbols)),
		Edges:       make([]EdgeRecord, 0, len(g.edges)),
		Diagnostics: append([]diag.Diagnostic{}, g.diagnostics...),
	}
	for id, s := range g.symbols {
		data.Symbols[id] = *s
	}
	for _, e := range g.edges {
		data.Edges = append(data.Edges, e.Record())
	}
	return data
}

// FromData rebuilds a graph from its serializable form.
func FromData(data *Data) (*Graph, error) {
	g := New()
	if data == nil {
		return g, nil
	}
	for id, s := range data.Symbols {
		s.ID = id
		g.addSymbol(&s)
	}
	for i, r := range data.Edges {
		e := r.Edge()
		for _, ref := range []*Ref{&e.Subject, e.Object} {
			if ref == nil || ref.ID == "" {
				continue
			}
			if _, ok := g.symbols[ref.ID]; !ok {
				return nil, fmt.Errorf("%w: edge %d references %q", ErrDanglingEdge, i, ref.ID)
			}
		}
		g.addEdge(e)
	}
	for _, d := range data.Diagnostics {
		g.addDiagnostic(d)
	}
	return g, nil
}

// Encode serializes a graph.
func Encode(g *Graph, format Format) ([]byte, error) {
	data := g.Data()
	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		return yaml.Marshal(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Decode parses a serialized graph.
func Decode(raw []byte, format Format) (*Graph, error) {
	var data Data
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse graph YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return FromData(&data)
}

// Storage handles reading and writing graph data to disk.
type Storage interface {
	// Load loads the graph from disk. Returns nil if file doesn't exist.
	Load() (*Graph, error)

	// Save saves the graph to disk using atomic write pattern.
	Save(g *Graph) error

	// Exists checks if the graph file exists.
	Exists() bool

	// Path returns the location of the graph file.
	Path() string
}

// storage implements Storage with atomic write support.
type storage struct {
	graphDir string // Directory containing graph file
	format   Format
}

// NewStorage creates a new graph storage instance.
func NewStorage(graphDir string, format Format) (Storage, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	// Ensure graph directory exists
	if err := os.MkdirAll(graphDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}

	// Ensure temp directory exists for atomic writes
	tempDir := filepath.Join(graphDir, ".tmp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &storage{graphDir: graphDir, format: format}, nil
}

// Load loads the graph data from disk.
func (s *storage) Load() (*Graph, error) {
	filePath := s.Path()

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, nil // Not an error, just no graph yet
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	return Decode(raw, s.format)
}

// Save saves the graph data to disk using atomic write pattern.
func (s *storage) Save(g *Graph) error {
	raw, err := Encode(g, s.format)
	if err != nil {
		return fmt.Errorf("failed to marshal graph data: %w", err)
	}

	// Write to temp file first
	tempPath := filepath.Join(s.graphDir, ".tmp", s.fileName())
	if err := os.WriteFile(tempPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write temp graph file: %w", err)
	}

	// Atomic rename (POSIX guarantees atomicity)
	if err := os.Rename(tempPath, s.Path()); err != nil {
		return fmt.Errorf("failed to rename temp graph file: %w", err)
	}

	return nil
}

// Exists checks if the graph file exists.
func (s *storage) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Path returns the full path to the graph file.
func (s *storage) Path() string {
	return filepath.Join(s.graphDir, s.fileName())
}

func (s *storage) fileName() string {
	return GraphFileName + "." + string(s.format)
}
