package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/cache"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/indexer"
	"github.com/mvp-joe/usagegraph/internal/report"
	"github.com/mvp-joe/usagegraph/internal/storage"
)

// ReportFileName is the name of the report written next to the graph.
const ReportFileName = "report.json"

var (
	quietFlag  bool
	watchFlag  bool
	sqliteFlag bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [dir]",
	Short: "Extract the usage graph of a project",
	Long: `Extract parses every supported source file under the project root, matches
usage patterns and resolves them into a usage graph.

Outputs (in .usagegraph/ unless output.dir says otherwise):
  - usage-graph.json (or .yaml with output.format: yaml)
  - report.json with counts, unresolved references and diagnostics
  - usage-graph.db when output.sqlite is set or --sqlite is given

Examples:
  # Extract the current directory
  usagegraph extract

  # Extract another project without progress bars
  usagegraph extract ../service --quiet

  # Re-extract whenever sources change
  usagegraph extract --watch
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	extractCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and re-extract")
	extractCmd.Flags().BoolVar(&sqliteFlag, "sqlite", false, "Also write the graph to SQLite")
}

func runExtract(cmd *cobra.Command, args []string) error {
	// Set up context with cancellation for Ctrl+C
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := loadProject(args)
	if err != nil {
		return err
	}
	if sqliteFlag {
		p.Config.Output.SQLite = true
	}

	session, err := newExtractSession(p, cmd.OutOrStdout(), quietFlag)
	if err != nil {
		return err
	}
	defer session.Close()

	r, err := session.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("extraction cancelled")
		}
		return err
	}
	if quietFlag {
		fmt.Fprintf(cmd.OutOrStdout(), "Extraction complete: %d symbols, %d edges, %d diagnostics\n",
			r.Symbols, r.Edges, len(r.Diagnostics()))
	}

	if !watchFlag {
		return nil
	}
	return session.Watch(ctx)
}

// extractSession holds what repeated extraction runs of one project share.
type extractSession struct {
	project   *project
	discovery *indexer.FileDiscovery
	extractor *indexer.Extractor
	cache     *cache.ParseCache
	progress  indexer.ProgressReporter
	out       io.Writer
}

func newExtractSession(p *project, out io.Writer, quiet bool) (*extractSession, error) {
	cfg := p.Config
	registry := cfg.Registry()

	discovery, err := indexer.NewFileDiscovery(p.Root, registry, cfg.Paths.Include, cfg.Paths.Ignore)
	if err != nil {
		return nil, err
	}

	progress := NewCLIProgressReporter(out, quiet)
	opts := []indexer.Option{
		indexer.WithWorkers(cfg.Extraction.Workers),
		indexer.WithFileTimeout(cfg.Extraction.FileTimeout),
		indexer.WithLogger(p.Logger),
		indexer.WithProgress(progress),
	}

	s := &extractSession{project: p, discovery: discovery, progress: progress, out: out}
	if cfg.Extraction.CacheSize > 0 {
		s.cache, err = cache.New(cfg.Extraction.CacheSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, indexer.WithCache(s.cache))
	}
	s.extractor = indexer.NewExtractor(registry, opts...)
	return s, nil
}

// Run discovers files, extracts them and writes every configured output.
func (s *extractSession) Run(ctx context.Context) (*report.Report, error) {
	s.progress.OnDiscoveryStart()
	files, err := s.discovery.DiscoverFiles()
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	s.progress.OnDiscoveryComplete(len(files))

	inputs, err := s.discovery.LoadInputs(files)
	if err != nil {
		return nil, err
	}

	result, err := s.extractor.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return s.write(result.Graph)
}

// write saves the graph, the optional SQLite copy and the report.
func (s *extractSession) write(g *graph.Graph) (*report.Report, error) {
	cfg := s.project.Config
	outDir := cfg.OutputDir(s.project.Root)

	graphStore, err := graph.NewStorage(outDir, cfg.GraphFormat())
	if err != nil {
		return nil, err
	}
	if err := graphStore.Save(g); err != nil {
		return nil, err
	}

	if cfg.Output.SQLite {
		w, err := storage.NewGraphWriter(filepath.Join(outDir, storage.DatabaseFileName))
		if err != nil {
			return nil, err
		}
		err = w.WriteGraph(g)
		w.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to write SQLite graph: %w", err)
		}
	}

	r, err := report.Build(g)
	if err != nil {
		return nil, err
	}
	if cfg.Output.Report {
		if err := writeReport(filepath.Join(outDir, ReportFileName), r); err != nil {
			return nil, err
		}
	}

	s.project.Logger.Info("extract.write", "dir", outDir, "symbols", r.Symbols, "edges", r.Edges)
	return r, nil
}

// Watch re-runs extraction whenever matching sources change, until ctx is
// cancelled. Unchanged files are served from the parse cache.
func (s *extractSession) Watch(ctx context.Context) error {
	logger := s.project.Logger
	watcher, err := indexer.NewWatcher(s.discovery, func(ctx context.Context, changed []string) {
		logger.Info("extract.rerun", "changed", len(changed))
		if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("extract.rerun.err", "err", err)
		}
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	fmt.Fprintln(s.out, "Watching for changes (Ctrl+C to stop)...")
	watcher.Start(ctx)
	<-ctx.Done()
	watcher.Stop()
	fmt.Fprintln(s.out, "Watch mode stopped")
	return nil
}

// Close releases the parse cache.
func (s *extractSession) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func writeReport(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
