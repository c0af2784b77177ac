package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/usagegraph/internal/graph"
)

// GraphWriter writes usage graphs to SQLite.
type GraphWriter struct {
	db     *sql.DB
	ownsDB bool // true if we opened the connection, false if shared
}

// NewGraphWriter opens the database at dbPath, creating the schema if needed.
func NewGraphWriter(dbPath string) (*GraphWriter, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &GraphWriter{db: db, ownsDB: true}, nil
}

// NewGraphWriterWithDB creates a GraphWriter using an existing database connection.
// The caller is responsible for managing the database lifecycle (schema, foreign keys, close).
func NewGraphWriterWithDB(db *sql.DB) *GraphWriter {
	return &GraphWriter{db: db, ownsDB: false}
}

// Close closes the database connection if owned by this writer.
func (w *GraphWriter) Close() error {
	if !w.ownsDB {
		// Shared connection - caller owns it
		return nil
	}
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

// WriteGraph replaces the stored graph with g in a single transaction.
// Edges and diagnostics keep their graph order through their seq column.
func (w *GraphWriter) WriteGraph(g *graph.Graph) error {
	if g == nil {
		return fmt.Errorf("graph cannot be nil")
	}
	data := g.Data()

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	// Clear existing graph data (in reverse dependency order to avoid FK violations)
	for _, table := range []string{"edges", "diagnostics", "symbols"} {
		if _, err := sq.Delete(table).RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to clear existing data (%s): %w", table, err)
		}
	}

	if err := writeSymbols(tx, data.Symbols); err != nil {
		return fmt.Errorf("failed to write symbols: %w", err)
	}
	if err := writeEdges(tx, data.Edges); err != nil {
		return fmt.Errorf("failed to write edges: %w", err)
	}
	if err := writeDiagnostics(tx, data); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}

	meta := map[string]string{
		"graph_version":    data.Metadata.Version,
		"symbol_count":     strconv.Itoa(data.Metadata.SymbolCount),
		"edge_count":       strconv.Itoa(data.Metadata.EdgeCount),
		"diagnostic_count": strconv.Itoa(data.Metadata.DiagnosticCount),
	}
	for key, value := range meta {
		if _, err := sq.Insert("graph_metadata").
			Options("OR REPLACE").
			Columns("key", "value").
			Values(key, value).
			RunWith(tx).Exec(); err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeSymbols(tx *sql.Tx, symbols map[string]graph.Symbol) error {
	ids := make([]string, 0, len(symbols))
	for id := range symbols {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := symbols[id]
		var file any
		var startLine, startCol, endLine, endCol, startByte, endByte any
		if s.Span != nil {
			file = s.Span.File
			startLine, startCol = s.Span.Start.Line, s.Span.Start.Column
			endLine, endCol = s.Span.End.Line, s.Span.End.Column
			startByte, endByte = s.Span.StartByte, s.Span.EndByte
		}
		_, err := sq.Insert("symbols").
			Columns("id", "name", "kind", "language", "external",
				"file", "start_line", "start_col", "end_line", "end_col", "start_byte", "end_byte").
			Values(id, s.Name, string(s.Kind), s.Language, boolToInt(s.External),
				file, startLine, startCol, endLine, endCol, startByte, endByte).
			RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("symbol %s: %w", id, err)
		}
	}
	return nil
}

func writeEdges(tx *sql.Tx, edges []graph.EdgeRecord) error {
	for i, e := range edges {
		_, err := sq.Insert("edges").
			Columns("seq", "kind",
				"subject_id", "subject_raw", "subject_reason",
				"object_id", "object_raw", "object_reason",
				"file", "start_line", "start_col", "end_line", "end_col", "start_byte", "end_byte").
			Values(i, string(e.Kind),
				nullString(e.SubjectID), e.SubjectRaw, string(e.SubjectReason),
				nullString(e.ObjectID), e.ObjectRaw, string(e.ObjectReason),
				e.File, e.StartLine, e.StartCol, e.EndLine, e.EndCol, e.StartByte, e.EndByte).
			RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}
	return nil
}

func writeDiagnostics(tx *sql.Tx, data *graph.Data) error {
	for i, d := range data.Diagnostics {
		_, err := sq.Insert("diagnostics").
			Columns("seq", "severity", "code", "file", "line", "col", "message").
			Values(i, string(d.Severity), string(d.Code), d.File, d.Position.Line, d.Position.Column, d.Message).
			RunWith(tx).Exec()
		if err != nil {
			return fmt.Errorf("diagnostic %d: %w", i, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
