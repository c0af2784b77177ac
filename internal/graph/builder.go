package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mvp-joe/usagegraph/internal/diag"
)

// Builder merges resolved usage patterns into a graph. Merges are
// serialized; readers only ever observe complete merges.
type Builder interface {
	// Merge adds events to the graph and reports whether anything changed.
	// Merging the same events again leaves the graph untouched.
	Merge(events []Event) bool

	// Record attaches diagnostics to the graph.
	Record(diags ...diag.Diagnostic) bool

	// Snapshot returns a consistent deep copy of the graph.
	Snapshot() *Graph

	// Version increases each time a merge or record changes the graph.
	Version() uint64
}

// builder implements Builder.
type builder struct {
	mu      sync.RWMutex
	graph   *Graph
	version uint64
	logger  *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*builder)

// WithLogger sets the logger used for merge statistics.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder over an empty graph.
func NewBuilder(opts ...BuilderOption) Builder {
	b := &builder{
		graph:  New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewBuilderFrom creates a builder that continues from an existing graph.
func NewBuilderFrom(g *Graph, opts ...BuilderOption) Builder {
	b := NewBuilder(opts...).(*builder)
	if g != nil {
		b.graph = g.clone()
	}
	return b
}

// Merge implements Builder.
func (b *builder) Merge(events []Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	newEdges := 0
	for _, ev := range events {
		if ev.Subject.Symbol != nil {
			if _, added := b.graph.addSymbol(ev.Subject.Symbol); added {
				changed = true
			}
		}
		if ev.Object != nil && ev.Object.Symbol != nil {
			if _, added := b.graph.addSymbol(ev.Object.Symbol); added {
				changed = true
			}
		}

		edge := Edge{Kind: ev.Kind, Subject: ev.Subject.Ref(), Site: ev.Site}
		if ev.Object != nil {
			obj := ev.Object.Ref()
			edge.Object = &obj
		}
		if !b.graph.addEdge(edge) {
			continue
		}
		changed = true
		newEdges++

		for _, ep := range []*Endpoint{&ev.Subject, ev.Object} {
			if ep != nil && ep.Unresolved != nil {
				b.graph.addDiagnostic(unresolvedDiagnostic(ev, ep.Unresolved))
			}
		}
	}

	if changed {
		b.version++
	}
	b.logger.Debug("graph.merge", "events", len(events), "new_edges", newEdges, "version", b.version)
	return changed
}

// Record implements Builder.
func (b *builder) Record(diags ...diag.Diagnostic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	for _, d := range diags {
		if b.graph.addDiagnostic(d) {
			changed = true
		}
	}
	if changed {
		b.version++
	}
	return changed
}

// Snapshot implements Builder.
func (b *builder) Snapshot() *Graph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.clone()
}

// Version implements Builder.
func (b *builder) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// unresolvedDiagnostic describes an unresolved endpoint of a merged event.
func unresolvedDiagnostic(ev Event, u *Unresolved) diag.Diagnostic {
	code := diag.CodeUnknown
	msg := fmt.Sprintf("unresolved %s reference %q: no matching declaration", ev.Kind, u.Name)
	if u.Reason == ReasonAmbiguous {
		code = diag.CodeAmbiguous
		candidates := append([]string(nil), u.Candidates...)
		sort.Strings(candidates)
		msg = fmt.Sprintf("ambiguous %s reference %q: %d candidates (%s)", ev.Kind, u.Name, len(candidates), strings.Join(candidates, ", "))
	}
	return diag.Warnf(code, ev.Site.File, ev.Site.Start, "%s", msg)
}
