package indexer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/cache"
	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for Extractor:
// - The Rust usage fixture yields the expected patterns with nothing unresolved
// - Site spans slice back to the construct they describe
// - References across files resolve through imports
// - Output is byte-identical regardless of worker count
// - Running the same inputs into the same builder changes nothing
// - A file that times out becomes a ParseError and the others proceed
// - A file without an adapter becomes a ParseError
// - Recovered syntax errors are kept as warnings
// - Types missing from recovered declarations produce no edges or Unknown diagnostics
// - Composition cycles are recorded as diagnostics
// - Cached first pass results are reused for unchanged files
// - A cancelled context stops the run

func loadFixture(t *testing.T) []byte {
	t.Helper()
	source, err := os.ReadFile("../../testdata/code/rust/usage_patterns.rs")
	require.NoError(t, err)
	return source
}

func newTestExtractor(opts ...Option) *Extractor {
	return NewExtractor(parsers.DefaultRegistry(), opts...)
}

var multiFileInputs = []Input{
	{Path: "src/geo.rs", Language: "rust", Source: []byte(`pub trait Shape {
    fn area(&self) -> f64;
}

pub struct Point {
    x: f64,
    y: f64,
}
`)},
	{Path: "src/shapes.rs", Language: "rust", Source: []byte(`use crate::geo::{Point, Shape};

pub struct Circle {
    center: Point,
    radius: f64,
}

impl Shape for Circle {
    fn area(&self) -> f64 {
        3.14 * self.radius * self.radius
    }
}

pub fn unit() -> Circle {
    let origin: Point = Point { x: 0.0, y: 0.0 };
    Circle { center: origin, radius: 1.0 }
}
`)},
	{Path: "src/canvas.rs", Language: "rust", Source: []byte(`use crate::shapes::Circle;

pub struct Canvas {
    items: Vec<Circle>,
}

impl Canvas {
    pub fn add(&mut self) {
        let c: Circle = crate::shapes::unit();
        self.items.push(c);
    }
}
`)},
}

func TestExtractor_RustFixture(t *testing.T) {
	t.Parallel()

	source := loadFixture(t)
	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "fixture.rs", Source: source}})
	require.NoError(t, err)
	g := res.Graph

	assert.Len(t, g.EdgesOf(graph.KindDefinition), 3)
	assert.Len(t, g.EdgesOf(graph.KindTraitImplementation), 1)
	assert.Len(t, g.EdgesOf(graph.KindComposition), 1)
	assert.GreaterOrEqual(t, len(g.EdgesOf(graph.KindStaticCall)), 2)
	assert.GreaterOrEqual(t, len(g.EdgesOf(graph.KindGenericInstantiation)), 1)
	assert.GreaterOrEqual(t, len(g.EdgesOf(graph.KindTypedBinding)), 1)

	for _, e := range g.Edges() {
		assert.False(t, e.Unresolved(), "unexpected unresolved edge %s %s", e.Kind, e.Subject)
	}
	assert.Empty(t, g.Diagnostics())

	impl := g.EdgesOf(graph.KindTraitImplementation)[0]
	assert.Equal(t, "fixture::BaseStruct", impl.Subject.ID)
	assert.Equal(t, "fixture::BaseTrait", impl.Object.ID)

	comp := g.EdgesOf(graph.KindComposition)[0]
	assert.Equal(t, "fixture::ExtendedStruct", comp.Subject.ID)
	assert.Equal(t, "fixture::BaseStruct", comp.Object.ID)

	var vecOfBase bool
	for _, e := range g.EdgesOf(graph.KindGenericInstantiation) {
		if e.Subject.ID == "extern::std::vec::Vec" && e.Object.ID == "fixture::BaseStruct" {
			vecOfBase = true
		}
	}
	assert.True(t, vecOfBase, "expected Vec<BaseStruct> instantiation")

	var binding bool
	for _, e := range g.EdgesOf(graph.KindTypedBinding) {
		if e.Subject.ID == "fixture::use_base" && e.Object.ID == "fixture::BaseStruct" {
			binding = true
			assert.Equal(t, "let my_base: BaseStruct = BaseStruct::new(3);", string(e.Site.Slice(source)))
		}
	}
	assert.True(t, binding, "expected use_base to bind BaseStruct")

	var staticToBase int
	for _, e := range g.EdgesOf(graph.KindStaticCall) {
		if e.Subject.ID == "fixture::use_base" && e.Object.ID == "fixture::BaseStruct" {
			staticToBase++
		}
	}
	assert.Equal(t, 2, staticToBase)

	base, ok := g.Symbol("fixture::BaseStruct")
	require.True(t, ok)
	assert.Equal(t, graph.SymbolType, base.Kind)
	require.NotNil(t, base.Span)
	assert.Contains(t, string(base.Span.Slice(source)), "pub struct BaseStruct")

	vec, ok := g.Symbol("extern::std::vec::Vec")
	require.True(t, ok)
	assert.True(t, vec.External)

	require.Len(t, res.Files, 1)
	assert.Equal(t, "rust", res.Files[0].Language)
	assert.False(t, res.Files[0].Failed)
	assert.Equal(t, 1, res.Stats.Files)
	assert.Equal(t, len(g.Edges()), res.Stats.Edges)
}

func TestExtractor_SitesSliceToConstruct(t *testing.T) {
	t.Parallel()

	source := loadFixture(t)
	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "fixture.rs", Source: source}})
	require.NoError(t, err)

	for _, e := range res.Graph.Edges() {
		text := string(e.Site.Slice(source))
		require.NotEmpty(t, text, "%s site is empty", e.Kind)
		if e.Object == nil || !e.Object.Resolved() {
			continue
		}
		obj, ok := res.Graph.Symbol(e.Object.ID)
		require.True(t, ok)
		if e.Kind == graph.KindDefinition {
			continue
		}
		assert.Contains(t, text, obj.Name, "%s site %q does not mention %s", e.Kind, text, obj.Name)
	}
}

func TestExtractor_CrossFile(t *testing.T) {
	t.Parallel()

	res, err := newTestExtractor().Run(context.Background(), multiFileInputs)
	require.NoError(t, err)
	g := res.Graph

	impl := g.EdgesOf(graph.KindTraitImplementation)
	require.Len(t, impl, 1)
	assert.Equal(t, "src/shapes::Circle", impl[0].Subject.ID)
	assert.Equal(t, "src/geo::Shape", impl[0].Object.ID)

	var centerPoint, itemsVec bool
	for _, e := range g.EdgesOf(graph.KindComposition) {
		if e.Subject.ID == "src/shapes::Circle" && e.Object.ID == "src/geo::Point" {
			centerPoint = true
		}
		if e.Subject.ID == "src/canvas::Canvas" && e.Object.ID == "extern::std::vec::Vec" {
			itemsVec = true
		}
	}
	assert.True(t, centerPoint)
	assert.True(t, itemsVec)

	var vecCircle bool
	for _, e := range g.EdgesOf(graph.KindGenericInstantiation) {
		if e.Subject.ID == "extern::std::vec::Vec" && e.Object.ID == "src/shapes::Circle" {
			vecCircle = true
		}
	}
	assert.True(t, vecCircle)

	var addBindsCircle bool
	for _, e := range g.EdgesOf(graph.KindTypedBinding) {
		if e.Subject.ID == "src/canvas::Canvas::add" && e.Object.ID == "src/shapes::Circle" {
			addBindsCircle = true
		}
	}
	assert.True(t, addBindsCircle)

	for _, e := range g.Edges() {
		assert.False(t, e.Unresolved(), "unexpected unresolved edge %s %s", e.Kind, e.Subject)
	}
}

func TestExtractor_DeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	inputs := append([]Input{{Path: "fixture.rs", Source: loadFixture(t)}}, multiFileInputs...)

	var outputs [][]byte
	for _, workers := range []int{1, 2, 8} {
		res, err := newTestExtractor(WithWorkers(workers)).Run(context.Background(), inputs)
		require.NoError(t, err)
		raw, err := graph.Encode(res.Graph, graph.FormatJSON)
		require.NoError(t, err)
		outputs = append(outputs, raw)
	}
	assert.Equal(t, string(outputs[0]), string(outputs[1]))
	assert.Equal(t, string(outputs[0]), string(outputs[2]))
}

func TestExtractor_Idempotent(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	b := graph.NewBuilder()

	_, err := e.RunInto(context.Background(), b, multiFileInputs)
	require.NoError(t, err)
	version := b.Version()
	before, err := graph.Encode(b.Snapshot(), graph.FormatJSON)
	require.NoError(t, err)

	_, err = e.RunInto(context.Background(), b, multiFileInputs)
	require.NoError(t, err)
	after, err := graph.Encode(b.Snapshot(), graph.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, version, b.Version())
	assert.Equal(t, string(before), string(after))
}

// slowAdapter sleeps past any reasonable timeout before parsing.
type slowAdapter struct {
	delay time.Duration
}

func (s *slowAdapter) Language() parsers.Language {
	return parsers.Language{Name: "slow", Extensions: []string{".slow"}}
}

func (s *slowAdapter) Parse(ctx context.Context, filePath string, source []byte) (*parsers.Result, error) {
	time.Sleep(s.delay)
	return nil, parsers.NewParseError(filePath, structure.Position{}, "slow parse finished")
}

func TestExtractor_FileTimeout(t *testing.T) {
	t.Parallel()

	registry := parsers.DefaultRegistry()
	registry.Register(&slowAdapter{delay: 500 * time.Millisecond})

	e := NewExtractor(registry, WithFileTimeout(20*time.Millisecond))
	inputs := append([]Input{{Path: "big.slow", Source: []byte("...")}}, multiFileInputs...)
	res, err := e.Run(context.Background(), inputs)
	require.NoError(t, err)

	require.Len(t, res.Files, 4)
	assert.True(t, res.Files[0].Failed)
	assert.Equal(t, 1, res.Stats.Failed)

	var parseErrors []diag.Diagnostic
	for _, d := range res.Graph.Diagnostics() {
		if d.Code == diag.CodeParseError {
			parseErrors = append(parseErrors, d)
		}
	}
	require.Len(t, parseErrors, 1)
	assert.Equal(t, "big.slow", parseErrors[0].File)
	assert.Equal(t, diag.SeverityError, parseErrors[0].Severity)
	assert.Contains(t, parseErrors[0].Message, "timed out")

	// The other files still contribute their patterns.
	assert.Len(t, res.Graph.EdgesOf(graph.KindTraitImplementation), 1)
}

func TestExtractor_UnknownLanguage(t *testing.T) {
	t.Parallel()

	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "notes.txt", Source: []byte("hello")}})
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Failed)
	require.Len(t, res.Graph.Diagnostics(), 1)
	assert.Equal(t, diag.CodeParseError, res.Graph.Diagnostics()[0].Code)
	assert.Contains(t, res.Graph.Diagnostics()[0].Message, "no adapter")
}

func TestExtractor_RecoveredSyntaxErrors(t *testing.T) {
	t.Parallel()

	source := []byte(`pub struct Good {
    inner: Other,
}

pub struct Other {}

fn broken( {
`)
	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "partial.rs", Source: source}})
	require.NoError(t, err)

	assert.False(t, res.Files[0].Failed)
	assert.NotEmpty(t, res.Files[0].Diagnostics)
	for _, d := range res.Files[0].Diagnostics {
		assert.Equal(t, diag.CodeParseError, d.Code)
		assert.Equal(t, diag.SeverityWarning, d.Severity)
	}
	assert.Len(t, res.Graph.EdgesOf(graph.KindComposition), 1)
}

func TestExtractor_MissingTypesAreSkipped(t *testing.T) {
	t.Parallel()

	source := []byte("pub struct Other {}\npub struct Broken { y: , z: }\npub struct Good { o: Other }\n")
	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "src/r.rs", Source: source}})
	require.NoError(t, err)
	g := res.Graph

	for _, e := range g.Edges() {
		if e.Object != nil && !e.Object.Resolved() {
			assert.NotEmpty(t, e.Object.Raw, "%s %s has an empty object", e.Kind, e.Subject.ID)
		}
	}
	for _, d := range g.Diagnostics() {
		assert.NotEqual(t, diag.CodeUnknown, d.Code, d.Message)
	}

	comp := g.EdgesOf(graph.KindComposition)
	require.Len(t, comp, 1)
	assert.Equal(t, "src/r::Good", comp[0].Subject.ID)
	assert.Equal(t, "src/r::Other", comp[0].Object.ID)
}

func TestExtractor_CompositionCycle(t *testing.T) {
	t.Parallel()

	source := []byte(`pub struct Node {
    next: Option<Box<Node>>,
    owner: Tree,
}

pub struct Tree {
    root: Node,
}
`)
	res, err := newTestExtractor().Run(context.Background(), []Input{{Path: "tree.rs", Source: source}})
	require.NoError(t, err)

	var cycles []string
	for _, d := range res.Graph.Diagnostics() {
		if d.Code == diag.CodeCompositionCycle {
			cycles = append(cycles, d.Message)
		}
	}
	require.Len(t, cycles, 2)
	assert.Contains(t, cycles[0], "tree::Node")
	assert.Contains(t, cycles[1], "tree::Tree")

	// Cycles are retained as edges.
	assert.Len(t, res.Graph.EdgesOf(graph.KindComposition), 3)
}

func TestExtractor_Cache(t *testing.T) {
	t.Parallel()

	c, err := cache.New(16)
	require.NoError(t, err)
	defer c.Close()

	e := newTestExtractor(WithCache(c))
	first, err := e.Run(context.Background(), multiFileInputs)
	require.NoError(t, err)
	assert.Zero(t, first.Stats.Cached)

	second, err := e.Run(context.Background(), multiFileInputs)
	require.NoError(t, err)
	assert.Equal(t, len(multiFileInputs), second.Stats.Cached)

	a, err := graph.Encode(first.Graph, graph.FormatJSON)
	require.NoError(t, err)
	b, err := graph.Encode(second.Graph, graph.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	changed := append([]Input(nil), multiFileInputs...)
	changed[0] = Input{Path: "src/geo.rs", Language: "rust", Source: []byte("pub trait Shape {}\npub struct Point {}\n")}
	third, err := e.Run(context.Background(), changed)
	require.NoError(t, err)
	assert.Equal(t, len(multiFileInputs)-1, third.Stats.Cached)
	assert.False(t, third.Files[0].Cached)
}

func TestExtractor_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestExtractor().Run(ctx, multiFileInputs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
