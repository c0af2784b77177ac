package storage

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// GraphReader reads usage graphs from SQLite. It provides both a bulk read
// of the complete graph and granular queries by symbol and kind.
type GraphReader struct {
	db     *sql.DB
	ownsDB bool
}

// NewGraphReader opens the database at dbPath in read-only mode.
func NewGraphReader(dbPath string) (*GraphReader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &GraphReader{db: db, ownsDB: true}, nil
}

// NewGraphReaderWithDB creates a GraphReader over an existing connection.
func NewGraphReaderWithDB(db *sql.DB) *GraphReader {
	return &GraphReader{db: db}
}

// Close closes the database connection if owned by this reader.
func (r *GraphReader) Close() error {
	if r.ownsDB && r.db != nil {
		return r.db.Close()
	}
	return nil
}

var symbolColumns = []string{
	"id", "name", "kind", "language", "external",
	"file", "start_line", "start_col", "end_line", "end_col", "start_byte", "end_byte",
}

var edgeColumns = []string{
	"kind",
	"COALESCE(subject_id, '')", "subject_raw", "subject_reason",
	"COALESCE(object_id, '')", "object_raw", "object_reason",
	"file", "start_line", "start_col", "end_line", "end_col", "start_byte", "end_byte",
}

// ReadGraph reconstructs the complete graph.
func (r *GraphReader) ReadGraph() (*graph.Graph, error) {
	symbols, err := r.ReadSymbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	edges, err := r.queryEdges(sq.Select(edgeColumns...).From("edges").OrderBy("seq"))
	if err != nil {
		return nil, fmt.Errorf("failed to read edges: %w", err)
	}
	diags, err := r.ReadDiagnostics()
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}

	data := &graph.Data{
		Symbols:     make(map[string]graph.Symbol, len(symbols)),
		Edges:       edges,
		Diagnostics: diags,
	}
	for _, s := range symbols {
		data.Symbols[s.ID] = *s
	}
	return graph.FromData(data)
}

// ReadSymbols returns every symbol ordered by id.
func (r *GraphReader) ReadSymbols() ([]*graph.Symbol, error) {
	return r.querySymbols(sq.Select(symbolColumns...).From("symbols").OrderBy("id"))
}

// SymbolsNamed returns the symbols with a simple name.
func (r *GraphReader) SymbolsNamed(name string) ([]*graph.Symbol, error) {
	return r.querySymbols(sq.Select(symbolColumns...).From("symbols").Where(sq.Eq{"name": name}).OrderBy("id"))
}

// EdgesFrom returns the edges whose subject is id, optionally filtered by kind.
func (r *GraphReader) EdgesFrom(id string, kinds ...graph.Kind) ([]graph.Edge, error) {
	return r.edgesWhere(sq.Eq{"subject_id": id}, kinds)
}

// EdgesTo returns the edges whose object is id, optionally filtered by kind.
func (r *GraphReader) EdgesTo(id string, kinds ...graph.Kind) ([]graph.Edge, error) {
	return r.edgesWhere(sq.Eq{"object_id": id}, kinds)
}

// CountByKind returns the number of edges of each kind.
func (r *GraphReader) CountByKind() (map[graph.Kind]int, error) {
	rows, err := sq.Select("kind", "COUNT(*)").
		From("edges").
		GroupBy("kind").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to count edges: %w", err)
	}
	defer rows.Close()

	counts := make(map[graph.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan edge count: %w", err)
		}
		counts[graph.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// ReadDiagnostics returns the diagnostics in recorded order.
func (r *GraphReader) ReadDiagnostics() ([]diag.Diagnostic, error) {
	rows, err := sq.Select("severity", "code", "file", "line", "col", "message").
		From("diagnostics").
		OrderBy("seq").
		RunWith(r.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []diag.Diagnostic{}
	for rows.Next() {
		var d diag.Diagnostic
		var severity, code string
		if err := rows.Scan(&severity, &code, &d.File, &d.Position.Line, &d.Position.Column, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.Severity, d.Code = diag.Severity(severity), diag.Code(code)
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func (r *GraphReader) edgesWhere(cond sq.Eq, kinds []graph.Kind) ([]graph.Edge, error) {
	query := sq.Select(edgeColumns...).From("edges").Where(cond).OrderBy("seq")
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		query = query.Where(sq.Eq{"kind": names})
	}
	records, err := r.queryEdges(query)
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, len(records))
	for i, rec := range records {
		edges[i] = rec.Edge()
	}
	return edges, nil
}

func (r *GraphReader) querySymbols(query sq.SelectBuilder) ([]*graph.Symbol, error) {
	rows, err := query.RunWith(r.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []*graph.Symbol
	for rows.Next() {
		var s graph.Symbol
		var kind string
		var external int
		var file sql.NullString
		var startLine, startCol, endLine, endCol, startByte, endByte sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Name, &kind, &s.Language, &external,
			&file, &startLine, &startCol, &endLine, &endCol, &startByte, &endByte); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		s.Kind = graph.SymbolKind(kind)
		s.External = external != 0
		if file.Valid {
			s.Span = &structure.Span{
				File:      file.String,
				StartByte: int(startByte.Int64),
				EndByte:   int(endByte.Int64),
				Start:     structure.Position{Line: int(startLine.Int64), Column: int(startCol.Int64)},
				End:       structure.Position{Line: int(endLine.Int64), Column: int(endCol.Int64)},
			}
		}
		symbols = append(symbols, &s)
	}
	return symbols, rows.Err()
}

func (r *GraphReader) queryEdges(query sq.SelectBuilder) ([]graph.EdgeRecord, error) {
	rows, err := query.RunWith(r.db).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	records := []graph.EdgeRecord{}
	for rows.Next() {
		var e graph.EdgeRecord
		var kind, subjectReason, objectReason string
		if err := rows.Scan(&kind,
			&e.SubjectID, &e.SubjectRaw, &subjectReason,
			&e.ObjectID, &e.ObjectRaw, &objectReason,
			&e.File, &e.StartLine, &e.StartCol, &e.EndLine, &e.EndCol, &e.StartByte, &e.EndByte); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = graph.Kind(kind)
		e.SubjectReason = graph.Reason(subjectReason)
		e.ObjectReason = graph.Reason(objectReason)
		records = append(records, e)
	}
	return records, rows.Err()
}
