package indexer

import (
	"time"

	"github.com/mvp-joe/usagegraph/internal/diag"
	"github.com/mvp-joe/usagegraph/internal/graph"
)

// Input is one source file handed to the extractor. Path is the path
// recorded in spans and used to derive module paths, so it should be
// relative to the project root.
type Input struct {
	Path     string
	Source   []byte
	Language string
}

// FileResult describes what happened to one input.
type FileResult struct {
	Path        string            `json:"path"`
	Language    string            `json:"language"`
	Hash        string            `json:"hash"`
	Cached      bool              `json:"cached"`
	Failed      bool              `json:"failed"`
	Events      int               `json:"events"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// Stats summarizes an extraction run.
type Stats struct {
	Files       int           `json:"files"`
	Failed      int           `json:"failed"`
	Cached      int           `json:"cached"`
	Symbols     int           `json:"symbols"`
	Edges       int           `json:"edges"`
	Diagnostics int           `json:"diagnostics"`
	Pass1       time.Duration `json:"pass1"`
	Pass2       time.Duration `json:"pass2"`
	Merge       time.Duration `json:"merge"`
	Total       time.Duration `json:"total"`
}

// Result is the outcome of an extraction run.
type Result struct {
	Graph   *graph.Graph
	Builder graph.Builder
	Files   []FileResult
	Stats   Stats
}
