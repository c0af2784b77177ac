package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

// QueryOperation represents the type of graph query to perform.
type QueryOperation string

const (
	OperationUses            QueryOperation = "uses"
	OperationUsedBy          QueryOperation = "used_by"
	OperationImplementations QueryOperation = "implementations"
	OperationComposes        QueryOperation = "composes"
)

// Operations lists the supported query operations.
var Operations = []QueryOperation{
	OperationUses,
	OperationUsedBy,
	OperationImplementations,
	OperationComposes,
}

// Query defaults and limits
const (
	DefaultDepth        = 1
	DefaultMaxResults   = 100
	DefaultContextLines = 3
	MaxDepth            = 10
	MaxContextLines     = 20
	MaxFileCacheSize    = 100
)

var (
	// ErrSymbolNotFound is returned when a query target names no symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrAmbiguousTarget is returned when a simple-name target matches several symbols.
	ErrAmbiguousTarget = errors.New("ambiguous symbol")
)

// QueryRequest represents a graph query request.
type QueryRequest struct {
	Operation      QueryOperation // Type of query
	Target         string         // Symbol id or simple name
	Kinds          []Kind         // Restrict traversed edges to these kinds (uses, used_by)
	IncludeContext bool           // Whether to include code context
	ContextLines   int            // Number of context lines around the site (default: 3)
	Depth          int            // Traversal depth (default: 1)
	MaxResults     int            // Maximum number of results (default: 100)
}

// QueryResponse represents the response to a graph query.
type QueryResponse struct {
	Operation     string        `json:"operation"`
	Target        string        `json:"target"`
	Results       []QueryResult `json:"results"`
	TotalFound    int           `json:"total_found"`
	TotalReturned int           `json:"total_returned"`
	Truncated     bool          `json:"truncated"`
	Metadata      ResponseMeta  `json:"metadata"`
}

// QueryResult is one symbol (or unresolved reference) reached by a query.
type QueryResult struct {
	Symbol  *Symbol        `json:"symbol,omitempty"`
	Raw     string         `json:"raw,omitempty"` // Name of an unresolved endpoint
	Kind    Kind           `json:"kind"`          // Kind of the edge that reached it
	Site    structure.Span `json:"site"`          // Site of that edge
	Depth   int            `json:"depth,omitempty"`
	Context string         `json:"context,omitempty"` // Code snippet if IncludeContext=true
}

// ResponseMeta contains metadata about the query execution.
type ResponseMeta struct {
	TookMs int    `json:"took_ms"`
	Source string `json:"source"` // Always "graph"
}

// Searcher answers structural queries over a usage graph.
type Searcher interface {
	// Query executes a graph query and returns results.
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)

	// Reload reloads the graph from its source.
	Reload(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// LoadFunc supplies the graph a searcher queries.
type LoadFunc func() (*Graph, error)

// searcher implements Searcher with an in-memory graph and reverse indexes.
type searcher struct {
	load    LoadFunc
	rootDir string
	mu      sync.RWMutex // Protects graph and indexes

	graph *Graph

	// Composition structure for transitive queries
	composition graph.Graph[string, string]

	// Reverse indexes for O(1) lookups
	outgoing map[string][]Edge // subject id -> edges
	incoming map[string][]Edge // object id -> edges

	fileMu    sync.Mutex
	fileCache map[string][]string // file path -> lines
}

// step is an internal type for tracking depth in traversal.
type step struct {
	edge     Edge
	endpoint Ref
	depth    int
}

// NewSearcher creates a searcher over the graph held by storage.
func NewSearcher(storage Storage, rootDir string) (Searcher, error) {
	return NewSearcherFunc(storage.Load, rootDir)
}

// NewSearcherFunc creates a searcher over the graph returned by load.
func NewSearcherFunc(load LoadFunc, rootDir string) (Searcher, error) {
	s := &searcher{
		load:      load,
		rootDir:   rootDir,
		fileCache: make(map[string][]string),
	}

	// Initial load
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload reloads the graph and rebuilds indexes.
func (s *searcher) Reload(ctx context.Context) error {
	g, err := s.load()
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	if g == nil {
		// No graph yet, initialize empty
		g = New()
	}

	composition := graph.New(graph.StringHash, graph.Directed())
	outgoing := make(map[string][]Edge)
	incoming := make(map[string][]Edge)

	for _, sym := range g.Symbols() {
		_ = composition.AddVertex(sym.ID)
	}
	for _, e := range g.Edges() {
		if e.Subject.Resolved() {
			outgoing[e.Subject.ID] = append(outgoing[e.Subject.ID], e)
		}
		if e.Object != nil && e.Object.Resolved() {
			incoming[e.Object.ID] = append(incoming[e.Object.ID], e)
		}
		if e.Kind == KindComposition && e.Subject.Resolved() && e.Object != nil && e.Object.Resolved() {
			// Duplicate pairs from different fields are expected
			_ = composition.AddEdge(e.Subject.ID, e.Object.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	s.composition = composition
	s.outgoing = outgoing
	s.incoming = incoming

	s.fileMu.Lock()
	s.fileCache = make(map[string][]string)
	s.fileMu.Unlock()

	return nil
}

// Query executes a graph query.
func (s *searcher) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	startTime := time.Now()

	// Set defaults
	if req.Depth <= 0 {
		req.Depth = DefaultDepth
	}
	if req.Depth > MaxDepth {
		req.Depth = MaxDepth
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}
	if req.ContextLines <= 0 {
		req.ContextLines = DefaultContextLines
	}
	if req.ContextLines > MaxContextLines {
		req.ContextLines = MaxContextLines
	}

	target, err := s.resolveTarget(req.Target)
	if err != nil {
		return nil, err
	}

	var steps []step
	switch req.Operation {
	case OperationUses:
		steps = s.traverse(target, req.Depth, kindFilter(req.Kinds), s.forward)
	case OperationUsedBy:
		steps = s.traverse(target, req.Depth, kindFilter(req.Kinds), s.backward)
	case OperationImplementations:
		// Implementations are always depth 1
		for _, e := range s.incoming[target] {
			if e.Kind == KindTraitImplementation {
				steps = append(steps, step{edge: e, endpoint: e.Subject, depth: 1})
			}
		}
	case OperationComposes:
		steps, err = s.queryComposes(target, req.Depth)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", req.Operation)
	}
	if err != nil {
		return nil, err
	}

	results := []QueryResult{}
	seen := make(map[string]bool)
	found := 0

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := string(st.edge.Kind) + "|" + st.endpoint.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		found++

		if len(results) >= req.MaxResults {
			continue
		}

		result := QueryResult{Kind: st.edge.Kind, Site: st.edge.Site, Depth: st.depth}
		if st.endpoint.Resolved() {
			result.Symbol, _ = s.graph.Symbol(st.endpoint.ID)
		} else {
			result.Raw = st.endpoint.Raw
		}

		// Inject context if requested
		if req.IncludeContext {
			if snippet, err := s.extractContext(st.edge.Site, req.ContextLines); err == nil {
				result.Context = snippet
			}
		}

		results = append(results, result)
	}

	return &QueryResponse{
		Operation:     string(req.Operation),
		Target:        target,
		Results:       results,
		TotalFound:    found,
		TotalReturned: len(results),
		Truncated:     len(results) < found,
		Metadata: ResponseMeta{
			TookMs: int(time.Since(startTime).Milliseconds()),
			Source: "graph",
		},
	}, nil
}

// resolveTarget maps a symbol id or a simple name to a symbol id.
func (s *searcher) resolveTarget(target string) (string, error) {
	if _, ok := s.graph.Symbol(target); ok {
		return target, nil
	}
	var matches []string
	for _, sym := range s.graph.Symbols() {
		if sym.Name == target || strings.HasSuffix(sym.ID, structure.PathSeparator+target) {
			matches = append(matches, sym.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSymbolNotFound, target)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousTarget, target, strings.Join(matches, ", "))
}

// forward follows edges from subject to object.
func (s *searcher) forward(id string) []step {
	var out []step
	for _, e := range s.outgoing[id] {
		if e.Object != nil {
			out = append(out, step{edge: e, endpoint: *e.Object})
		}
	}
	return out
}

// backward follows edges from object to subject.
func (s *searcher) backward(id string) []step {
	var out []step
	for _, e := range s.incoming[id] {
		out = append(out, step{edge: e, endpoint: e.Subject})
	}
	return out
}

// traverse collects neighbours recursively up to depth. Each symbol is
// expanded at most once, at its shallowest depth.
func (s *searcher) traverse(target string, depth int, keep func(Kind) bool, next func(string) []step) []step {
	results := []step{}
	visited := make(map[string]int) // id -> depth at which it was first visited

	var walk func(id string, currentDepth int)
	walk = func(id string, currentDepth int) {
		if currentDepth > depth {
			return
		}
		if prevDepth, seen := visited[id]; seen && prevDepth <= currentDepth {
			return // Already visited at same or shallower depth
		}
		visited[id] = currentDepth

		for _, st := range next(id) {
			if !keep(st.edge.Kind) {
				continue
			}
			st.depth = currentDepth
			results = append(results, st)
			if currentDepth < depth && st.endpoint.Resolved() {
				walk(st.endpoint.ID, currentDepth+1)
			}
		}
	}

	walk(target, 1)
	return results
}

// queryComposes walks the composition structure breadth first, reporting
// every type reachable from target through fields.
func (s *searcher) queryComposes(target string, depth int) ([]step, error) {
	adjacency, err := s.composition.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to read composition graph: %w", err)
	}

	var results []step
	visited := map[string]bool{target: true}
	frontier := []string{target}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			neighbours := make([]string, 0, len(adjacency[id]))
			for to := range adjacency[id] {
				neighbours = append(neighbours, to)
			}
			sort.Strings(neighbours)
			for _, to := range neighbours {
				if visited[to] {
					continue
				}
				visited[to] = true
				next = append(next, to)
				if e, ok := s.firstEdge(KindComposition, id, to); ok {
					results = append(results, step{edge: e, endpoint: Ref{ID: to}, depth: level})
				}
			}
		}
		frontier = next
	}
	return results, nil
}

// firstEdge returns the earliest edge of kind between two symbols.
func (s *searcher) firstEdge(kind Kind, from, to string) (Edge, bool) {
	for _, e := range s.outgoing[from] {
		if e.Kind == kind && e.Object != nil && e.Object.ID == to {
			return e, true
		}
	}
	return Edge{}, false
}

// extractContext reads the file and extracts lines with context padding.
func (s *searcher) extractContext(site structure.Span, contextLines int) (string, error) {
	lines, err := s.getFileLines(site.File)
	if err != nil {
		return "", err
	}

	// Calculate context window
	from := max(0, site.Start.Line-contextLines-1)
	to := min(len(lines), site.End.Line+contextLines)
	if from >= to {
		return "", fmt.Errorf("site %s:%d is outside the file", site.File, site.Start.Line)
	}

	snippet := strings.Join(lines[from:to], "\n")
	prefix := fmt.Sprintf("// Lines %d-%d\n", from+1, to)
	return prefix + snippet, nil
}

// getFileLines reads a file and caches its lines.
func (s *searcher) getFileLines(relPath string) ([]string, error) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if lines, ok := s.fileCache[relPath]; ok {
		return lines, nil
	}

	fullPath := filepath.Join(s.rootDir, relPath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	if len(s.fileCache) < MaxFileCacheSize {
		s.fileCache[relPath] = lines
	}
	return lines, nil
}

// Close releases resources.
func (s *searcher) Close() error {
	return nil
}

// kindFilter returns a predicate accepting the listed kinds, or every kind
// when none are listed.
func kindFilter(kinds []Kind) func(Kind) bool {
	if len(kinds) == 0 {
		return func(Kind) bool { return true }
	}
	allowed := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(k Kind) bool { return allowed[k] }
}
