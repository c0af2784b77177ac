// Package cache keeps the per-file results of the first extraction pass so
// that unchanged files are not parsed again on the next run.
package cache

import (
	"fmt"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
	"github.com/mvp-joe/usagegraph/internal/resolve"
)

// DefaultCapacity is the number of files kept when no size is configured.
const DefaultCapacity = 4096

// Entry is the cached outcome of parsing and collecting one file. Both the
// tree and the scope are read-only once built, so entries may be shared by
// concurrent runs.
type Entry struct {
	Hash     uint64
	Language string
	Result   *parsers.Result
	Scope    *resolve.FileScope
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// ParseCache is a bounded in-memory cache of parsed files keyed by path and
// content hash.
type ParseCache struct {
	c otter.Cache[string, Entry]
}

// New creates a cache holding at most capacity files.
func New(capacity int) (*ParseCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := otter.MustBuilder[string, Entry](capacity).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build parse cache: %w", err)
	}
	return &ParseCache{c: c}, nil
}

// Get returns the entry for path if its content is unchanged.
func (p *ParseCache) Get(path string, source []byte) (Entry, bool) {
	return p.c.Get(Key(path, source))
}

// Put stores the entry for path and source.
func (p *ParseCache) Put(path string, source []byte, e Entry) {
	e.Hash = Hash(source)
	p.c.Set(Key(path, source), e)
}

// Stats returns hit and miss counts.
func (p *ParseCache) Stats() Stats {
	s := p.c.Stats()
	return Stats{Hits: s.Hits(), Misses: s.Misses(), Size: p.c.Size()}
}

// Clear drops every entry.
func (p *ParseCache) Clear() {
	p.c.Clear()
}

// Close releases the cache.
func (p *ParseCache) Close() {
	p.c.Close()
}
