// Package report derives the extraction report from a usage graph. A report
// is a read-only view: it is rebuilt from the graph, never edited.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
)

// Report summarizes one extraction run.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     uint64    `json:"graph_version"`

	Symbols int                `json:"symbols"`
	Edges   int                `json:"edges"`
	Counts  map[graph.Kind]int `json:"counts"`

	Unresolved  []Unresolved      `json:"unresolved"`
	ParseErrors []diag.Diagnostic `json:"parse_errors"`
	Resolution  []diag.Diagnostic `json:"resolution"`
	Cycles      []diag.Diagnostic `json:"cycles"`
}

// Unresolved is one occurrence of an endpoint that did not bind.
type Unresolved struct {
	Kind   graph.Kind   `json:"kind"`
	Name   string       `json:"name"`
	Reason graph.Reason `json:"reason"`
	File   string       `json:"file"`
	Line   int          `json:"line"`
	Column int          `json:"column"`
}

// Build derives a report from a graph snapshot.
func Build(g *graph.Graph) (*Report, error) {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Symbols:     len(g.Symbols()),
		Edges:       len(g.Edges()),
		Counts:      make(map[graph.Kind]int, len(graph.Kinds)),
		Unresolved:  []Unresolved{},
		ParseErrors: []diag.Diagnostic{},
		Resolution:  []diag.Diagnostic{},
		Cycles:      []diag.Diagnostic{},
	}
	for _, k := range graph.Kinds {
		r.Counts[k] = 0
	}

	for _, e := range g.Edges() {
		r.Counts[e.Kind]++
		for _, ref := range []*graph.Ref{&e.Subject, e.Object} {
			if ref == nil || ref.Resolved() {
				continue
			}
			r.Unresolved = append(r.Unresolved, Unresolved{
				Kind:   e.Kind,
				Name:   ref.Raw,
				Reason: ref.Reason,
				File:   e.Site.File,
				Line:   e.Site.Start.Line,
				Column: e.Site.Start.Column,
			})
		}
	}

	for _, d := range g.Diagnostics() {
		switch d.Code {
		case diag.CodeParseError:
			r.ParseErrors = append(r.ParseErrors, d)
		case diag.CodeAmbiguous, diag.CodeUnknown:
			r.Resolution = append(r.Resolution, d)
		case diag.CodeCompositionCycle:
			r.Cycles = append(r.Cycles, d)
		}
	}

	cycles, err := graph.CycleDiagnostics(g)
	if err != nil {
		return nil, fmt.Errorf("failed to detect composition cycles: %w", err)
	}
	seen := make(map[diag.Diagnostic]bool, len(r.Cycles))
	for _, d := range r.Cycles {
		seen[d] = true
	}
	for _, d := range cycles {
		if !seen[d] {
			r.Cycles = append(r.Cycles, d)
		}
	}

	sort.SliceStable(r.Cycles, func(i, j int) bool { return diag.Less(r.Cycles[i], r.Cycles[j]) })
	sort.SliceStable(r.ParseErrors, func(i, j int) bool { return diag.Less(r.ParseErrors[i], r.ParseErrors[j]) })
	sort.SliceStable(r.Resolution, func(i, j int) bool { return diag.Less(r.Resolution[i], r.Resolution[j]) })
	return r, nil
}

// Diagnostics returns every diagnostic in the report.
func (r *Report) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(r.ParseErrors)+len(r.Resolution)+len(r.Cycles))
	out = append(out, r.ParseErrors...)
	out = append(out, r.Resolution...)
	return append(out, r.Cycles...)
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics() {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a human readable summary.
func (r *Report) WriteText(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Extraction Report:\n")
	printf("  Run:     %s\n", r.RunID)
	printf("  Symbols: %d\n", r.Symbols)
	printf("  Edges:   %d\n", r.Edges)
	printf("\n")

	printf("Patterns:\n")
	for _, k := range graph.Kinds {
		printf("  %-22s %d\n", k, r.Counts[k])
	}
	printf("\n")

	printf("Unresolved: %d\n", len(r.Unresolved))
	for _, u := range r.Unresolved {
		printf("  %s:%d:%d %s %q (%s)\n", u.File, u.Line, u.Column, u.Kind, u.Name, u.Reason)
	}

	diags := r.Diagnostics()
	if len(diags) > 0 {
		printf("\nDiagnostics (%d):\n", len(diags))
		for _, d := range diags {
			printf("  %s\n", d)
		}
	}
	return err
}

// Tracker keeps the report of a live builder current. The report is rebuilt
// lazily, only when the graph version has moved since the last build.
type Tracker struct {
	mu      sync.Mutex
	builder graph.Builder
	report  *Report
	built   bool
	version uint64
}

// NewTracker creates a tracker for builder.
func NewTracker(builder graph.Builder) *Tracker {
	return &Tracker{builder: builder}
}

// Report returns the report for the current graph version.
func (t *Tracker) Report() (*Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	version := t.builder.Version()
	if t.built && version == t.version {
		return t.report, nil
	}

	r, err := Build(t.builder.Snapshot())
	if err != nil {
		return nil, err
	}
	r.Version = version
	t.report, t.version, t.built = r, version, true
	return r, nil
}
