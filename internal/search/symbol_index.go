// Package search provides keyword search over the symbols of a usage graph.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/usagegraph/internal/graph"
)

const (
	// DefaultLimit is the number of results returned when no limit is given.
	DefaultLimit = 15
	// MaxLimit caps the number of results per search.
	MaxLimit = 100
)

// SymbolIndex is a full-text index over graph symbols.
type SymbolIndex interface {
	// Search executes a keyword search using bleve query string syntax.
	// Supports field scoping (name:, id:, kind:, file:, language:),
	// boolean operators, wildcards and fuzzy matching.
	Search(ctx context.Context, queryStr string, options *SearchOptions) ([]*SymbolResult, error)

	// Rebuild replaces the indexed symbols with those of g.
	Rebuild(ctx context.Context, g *graph.Graph) error

	// Len returns the number of indexed symbols.
	Len() int

	// Close releases resources held by the index.
	Close() error
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit    int              `json:"limit,omitempty"`
	Kind     graph.SymbolKind `json:"kind,omitempty"`
	Language string           `json:"language,omitempty"`
	// External selects only external (true) or only declared (false)
	// symbols. Nil keeps both.
	External *bool `json:"external,omitempty"`
}

// SymbolResult is a single search hit.
type SymbolResult struct {
	Symbol *graph.Symbol `json:"symbol"`
	Score  float64       `json:"score"`
	Uses   int           `json:"uses"`    // Edges with the symbol as subject
	UsedBy int           `json:"used_by"` // Edges with the symbol as object
}

// symbolIndex implements SymbolIndex using an in-memory bleve index.
type symbolIndex struct {
	mu      sync.RWMutex // Protects index and symbols during rebuilds
	index   bleve.Index
	symbols map[string]*graph.Symbol
	in      map[string]int
	out     map[string]int
}

// NewSymbolIndex creates an index over the symbols of g.
func NewSymbolIndex(ctx context.Context, g *graph.Graph) (SymbolIndex, error) {
	s := &symbolIndex{}
	if err := s.Rebuild(ctx, g); err != nil {
		return nil, err
	}
	return s, nil
}

// buildMapping creates the index mapping for symbol documents.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	// Name and qualified id are split into words for partial matching
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = "standard"
	nameMapping.Store = true

	idMapping := bleve.NewTextFieldMapping()
	idMapping.Analyzer = "standard"
	idMapping.Store = true

	filePathMapping := bleve.NewTextFieldMapping()
	filePathMapping.Analyzer = "standard"
	filePathMapping.Store = true

	// Filter fields - keyword analyzer for exact matching
	keywordMapping := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = "keyword"
		m.Store = true
		return m
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", nameMapping)
	docMapping.AddFieldMappingsAt("id", idMapping)
	docMapping.AddFieldMappingsAt("file", filePathMapping)
	docMapping.AddFieldMappingsAt("kind", keywordMapping())
	docMapping.AddFieldMappingsAt("language", keywordMapping())
	docMapping.AddFieldMappingsAt("external", keywordMapping())

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func symbolToDocument(s *graph.Symbol) map[string]any {
	doc := map[string]any{
		"name":     s.Name,
		"id":       s.ID,
		"kind":     string(s.Kind),
		"language": s.Language,
		"external": fmt.Sprint(s.External),
	}
	if s.Span != nil {
		doc["file"] = s.Span.File
	}
	return doc
}

// Rebuild implements SymbolIndex.
func (s *symbolIndex) Rebuild(ctx context.Context, g *graph.Graph) error {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	const batchSize = 1000
	symbols := make(map[string]*graph.Symbol)
	in := make(map[string]int)
	out := make(map[string]int)

	if g != nil {
		batch := index.NewBatch()
		for i, sym := range g.Symbols() {
			if i%batchSize == 0 {
				if err := ctx.Err(); err != nil {
					index.Close()
					return err
				}
			}
			symbols[sym.ID] = sym
			if err := batch.Index(sym.ID, symbolToDocument(sym)); err != nil {
				index.Close()
				return fmt.Errorf("failed to add symbol %s to batch: %w", sym.ID, err)
			}
			if batch.Size() >= batchSize {
				if err := index.Batch(batch); err != nil {
					index.Close()
					return fmt.Errorf("failed to execute batch: %w", err)
				}
				batch = index.NewBatch()
			}
		}
		if batch.Size() > 0 {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return fmt.Errorf("failed to execute final batch: %w", err)
			}
		}

		for _, e := range g.Edges() {
			if e.Kind == graph.KindDefinition {
				continue
			}
			if e.Subject.Resolved() {
				out[e.Subject.ID]++
			}
			if e.Object != nil && e.Object.Resolved() {
				in[e.Object.ID]++
			}
		}
	}

	s.mu.Lock()
	old := s.index
	s.index, s.symbols, s.in, s.out = index, symbols, in, out
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Search implements SymbolIndex.
func (s *symbolIndex) Search(ctx context.Context, queryStr string, options *SearchOptions) ([]*SymbolResult, error) {
	if options == nil {
		options = &SearchOptions{}
	}
	limit := options.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	queries := []query.Query{bleve.NewQueryStringQuery(queryStr)}
	if options.Kind != "" {
		q := bleve.NewMatchQuery(string(options.Kind))
		q.SetField("kind")
		queries = append(queries, q)
	}
	if options.Language != "" {
		q := bleve.NewMatchQuery(options.Language)
		q.SetField("language")
		queries = append(queries, q)
	}
	if options.External != nil {
		q := bleve.NewMatchQuery(fmt.Sprint(*options.External))
		q.SetField("external")
		queries = append(queries, q)
	}

	var finalQuery query.Query = queries[0]
	if len(queries) > 1 {
		finalQuery = bleve.NewConjunctionQuery(queries...)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, fmt.Errorf("symbol index is closed")
	}

	req := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	results := make([]*SymbolResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		sym, ok := s.symbols[hit.ID]
		if !ok {
			continue
		}
		results = append(results, &SymbolResult{
			Symbol: sym,
			Score:  hit.Score,
			Uses:   s.out[hit.ID],
			UsedBy: s.in[hit.ID],
		})
	}
	// Equal scores fall back to id order so results are stable.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Symbol.ID < results[j].Symbol.ID
	})
	return results, nil
}

// Len implements SymbolIndex.
func (s *symbolIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Close implements SymbolIndex.
func (s *symbolIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
