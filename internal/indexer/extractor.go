package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/usagegraph/internal/cache"
	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
	"github.com/mvp-joe/usagegraph/internal/pattern"
	"github.com/mvp-joe/usagegraph/internal/resolve"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// DefaultFileTimeout bounds the time spent parsing a single file.
const DefaultFileTimeout = 30 * time.Second

// Extractor turns source files into a usage graph in two passes. The first
// pass parses every file and collects its declarations; the second matches
// and resolves usage patterns against the table built from all of them.
type Extractor struct {
	registry    *parsers.Registry
	workers     int
	fileTimeout time.Duration
	cache       *cache.ParseCache
	logger      *slog.Logger
	progress    ProgressReporter
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers sets the number of files processed concurrently. Zero or less
// uses one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithFileTimeout sets the per-file parse timeout. Zero disables it.
func WithFileTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.fileTimeout = d
	}
}

// WithCache reuses first pass results for files whose content is unchanged.
func WithCache(c *cache.ParseCache) Option {
	return func(e *Extractor) {
		e.cache = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(e *Extractor) {
		if p != nil {
			e.progress = p
		}
	}
}

// NewExtractor creates an extractor using the adapters in registry.
func NewExtractor(registry *parsers.Registry, opts ...Option) *Extractor {
	e := &Extractor{
		registry:    registry,
		fileTimeout: DefaultFileTimeout,
		logger:      slog.Default(),
		progress:    &NoOpProgressReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fileState carries one input through both passes. Each worker writes only
// its own slot, so no locking is needed.
type fileState struct {
	input    Input
	language string
	hash     uint64
	cached   bool
	result   *parsers.Result
	scope    *resolve.FileScope
	failure  *diag.Diagnostic
	events   []graph.Event
}

// Run extracts a fresh graph from inputs.
func (e *Extractor) Run(ctx context.Context, inputs []Input) (*Result, error) {
	return e.RunInto(ctx, graph.NewBuilder(graph.WithLogger(e.logger)), inputs)
}

// RunInto extracts usage patterns from inputs and merges them into b.
// Files that fail to parse, time out or have no adapter become ParseError
// diagnostics; the run only fails when ctx is cancelled.
func (e *Extractor) RunInto(ctx context.Context, b graph.Builder, inputs []Input) (*Result, error) {
	start := time.Now()
	states := make([]*fileState, len(inputs))
	for i, in := range inputs {
		states[i] = &fileState{input: in}
	}

	// Pass 1: parse and collect declarations.
	e.progress.OnPassStart(1, len(states))
	if err := e.each(ctx, states, func(ctx context.Context, s *fileState) {
		e.collect(ctx, s)
		e.progress.OnFileProcessed(1, s.input.Path)
	}); err != nil {
		return nil, err
	}
	pass1 := time.Since(start)

	// Barrier passed: every declaration is known.
	scopes := make([]*resolve.FileScope, 0, len(states))
	for _, s := range states {
		if s.scope != nil {
			scopes = append(scopes, s.scope)
		}
	}
	resolver := resolve.New(resolve.NewTable(scopes...))
	e.logger.Info("extract.pass", "pass", 1, "files", len(states), "scopes", len(scopes), "elapsed", pass1)

	// Pass 2: match and resolve against the read-only table.
	pass2Start := time.Now()
	e.progress.OnPassStart(2, len(scopes))
	if err := e.each(ctx, states, func(_ context.Context, s *fileState) {
		if s.scope == nil {
			return
		}
		s.events = slices.Collect(resolver.Resolve(pattern.Match(s.result.Root, s.input.Path), s.scope))
		e.progress.OnFileProcessed(2, s.input.Path)
	}); err != nil {
		return nil, err
	}
	pass2 := time.Since(pass2Start)
	e.logger.Info("extract.pass", "pass", 2, "files", len(scopes), "elapsed", pass2)

	// Merge in input order through the single writer.
	mergeStart := time.Now()
	files := make([]FileResult, len(states))
	for i, s := range states {
		b.Merge(s.events)
		fr := FileResult{
			Path:     s.input.Path,
			Language: s.language,
			Hash:     cache.HashString(s.hash),
			Cached:   s.cached,
			Events:   len(s.events),
		}
		if s.result != nil {
			fr.Diagnostics = append(fr.Diagnostics, s.result.Diagnostics...)
		}
		if s.failure != nil {
			fr.Failed = true
			fr.Diagnostics = append(fr.Diagnostics, *s.failure)
		}
		b.Record(fr.Diagnostics...)
		files[i] = fr
	}

	cycles, err := graph.CycleDiagnostics(b.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to check composition cycles: %w", err)
	}
	b.Record(cycles...)
	merge := time.Since(mergeStart)

	g := b.Snapshot()
	res := &Result{Graph: g, Builder: b, Files: files}
	res.Stats = Stats{
		Files:       len(files),
		Symbols:     len(g.Symbols()),
		Edges:       len(g.Edges()),
		Diagnostics: len(g.Diagnostics()),
		Pass1:       pass1,
		Pass2:       pass2,
		Merge:       merge,
		Total:       time.Since(start),
	}
	for _, f := range files {
		if f.Failed {
			res.Stats.Failed++
		}
		if f.Cached {
			res.Stats.Cached++
		}
	}

	e.logger.Info("extract.done",
		"files", res.Stats.Files,
		"failed", res.Stats.Failed,
		"cached", res.Stats.Cached,
		"symbols", res.Stats.Symbols,
		"edges", res.Stats.Edges,
		"diagnostics", res.Stats.Diagnostics,
		"elapsed", res.Stats.Total)
	e.progress.OnComplete(res.Stats)
	return res, nil
}

// each runs fn over every state on the worker pool and waits for all of
// them. Cancelling ctx stops new files from being submitted.
func (e *Extractor) each(ctx context.Context, states []*fileState, fn func(context.Context, *fileState)) error {
	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(states) {
		workers = max(len(states), 1)
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, s := range states {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("extraction cancelled: %w", err)
	}
	return nil
}

// collect runs the first pass for one file.
func (e *Extractor) collect(ctx context.Context, s *fileState) {
	in := s.input
	s.hash = cache.Hash(in.Source)

	s.language = in.Language
	if s.language == "" {
		s.language, _ = e.registry.Detect(in.Path)
	}
	adapter, ok := e.registry.Get(s.language)
	if !ok {
		e.fail(s, parsers.NewParseError(in.Path, structure.Position{}, "no adapter for language %q", s.language))
		return
	}

	if e.cache != nil {
		if entry, hit := e.cache.Get(in.Path, in.Source); hit && entry.Language == s.language {
			s.result, s.scope, s.cached = entry.Result, entry.Scope, true
			return
		}
	}

	res, err := e.parse(ctx, adapter, in)
	if err != nil {
		var pe *parsers.ParseError
		if !errors.As(err, &pe) {
			pe = parsers.NewParseError(in.Path, structure.Position{}, "%v", err)
		}
		e.fail(s, pe)
		return
	}
	if err := structure.Validate(res.Root); err != nil {
		e.fail(s, parsers.NewParseError(in.Path, structure.Position{}, "invalid tree: %v", err))
		return
	}

	s.result = res
	s.scope = resolve.Collect(res.Root, adapter.Language().Prelude)
	if e.cache != nil {
		e.cache.Put(in.Path, in.Source, cache.Entry{Language: s.language, Result: s.result, Scope: s.scope})
	}
}

// parse runs the adapter under the per-file timeout. A parse that overruns
// is abandoned; its result is discarded when it eventually returns.
func (e *Extractor) parse(ctx context.Context, adapter parsers.Adapter, in Input) (*parsers.Result, error) {
	if e.fileTimeout <= 0 {
		return adapter.Parse(ctx, in.Path, in.Source)
	}

	ctx, cancel := context.WithTimeout(ctx, e.fileTimeout)
	defer cancel()

	type outcome struct {
		res *parsers.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := adapter.Parse(ctx, in.Path, in.Source)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, parsers.NewParseError(in.Path, structure.Position{}, "parse timed out after %s", e.fileTimeout)
		}
		return nil, parsers.NewParseError(in.Path, structure.Position{}, "parse cancelled: %v", ctx.Err())
	}
}

func (e *Extractor) fail(s *fileState, pe *parsers.ParseError) {
	d := pe.Diagnostic()
	s.failure = &d
	e.logger.Warn("extract.file.err", "path", s.input.Path, "language", s.language, "err", pe.Message)
}
