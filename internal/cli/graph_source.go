package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/storage"
)

// loadGraph reads the graph written by extract, from the graph file or
// from the SQLite copy.
func loadGraph(p *project, fromSQLite bool) (*graph.Graph, error) {
	outDir := p.Config.OutputDir(p.Root)

	if fromSQLite {
		dbPath := filepath.Join(outDir, storage.DatabaseFileName)
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("no SQLite graph at %s; run 'usagegraph extract --sqlite' first", dbPath)
		}
		r, err := storage.NewGraphReader(dbPath)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.ReadGraph()
	}

	graphStore, err := graph.NewStorage(outDir, p.Config.GraphFormat())
	if err != nil {
		return nil, err
	}
	if !graphStore.Exists() {
		return nil, fmt.Errorf("no usage graph at %s; run 'usagegraph extract' first", graphStore.Path())
	}
	return graphStore.Load()
}
