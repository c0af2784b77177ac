// Package mcp exposes a usage graph to MCP clients over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/report"
	"github.com/mvp-joe/usagegraph/internal/search"
)

// ServerConfig configures the MCP server.
type ServerConfig struct {
	RootDir  string       // Project root, used to read code context
	GraphDir string       // Directory holding the graph file
	Format   graph.Format // Graph file format
	Version  string       // Reported server version
	Watch    bool         // Reload when the graph file changes
	Logger   *slog.Logger
}

// Server manages the MCP server lifecycle.
type Server struct {
	config   *ServerConfig
	storage  graph.Storage
	current  atomic.Pointer[graph.Graph]
	searcher graph.Searcher
	index    search.SymbolIndex
	watcher  *FileWatcher
	logger   *slog.Logger
	mcp      *server.MCPServer

	reportMu  sync.Mutex
	report    *report.Report
	reportFor *graph.Graph
}

// NewServer loads the graph and registers the usage_graph, symbol_search
// and usage_report tools.
func NewServer(ctx context.Context, config *ServerConfig) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := config.Version
	if version == "" {
		version = "dev"
	}

	storage, err := graph.NewStorage(config.GraphDir, config.Format)
	if err != nil {
		return nil, err
	}

	s := &Server{config: config, storage: storage, logger: logger}
	g, err := s.load()
	if err != nil {
		return nil, err
	}
	s.current.Store(g)

	s.searcher, err = graph.NewSearcherFunc(func() (*graph.Graph, error) {
		return s.current.Load(), nil
	}, config.RootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph searcher: %w", err)
	}

	s.index, err = search.NewSymbolIndex(ctx, g)
	if err != nil {
		s.searcher.Close()
		return nil, fmt.Errorf("failed to create symbol index: %w", err)
	}

	s.mcp = server.NewMCPServer(
		"usagegraph",
		version,
		server.WithToolCapabilities(true),
	)
	AddUsageGraphTool(s.mcp, s.searcher)
	AddSymbolSearchTool(s.mcp, s.index)
	AddUsageReportTool(s.mcp, s)

	if config.Watch {
		s.watcher, err = NewFileWatcher(s, storage.Path(), logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
	}

	logger.Info("mcp.load", "path", storage.Path(), "symbols", len(g.Symbols()), "edges", len(g.Edges()))
	return s, nil
}

func (s *Server) load() (*graph.Graph, error) {
	g, err := s.storage.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	if g == nil {
		s.logger.Warn("mcp.load.missing", "path", s.storage.Path())
		g = graph.New()
	}
	return g, nil
}

// Reload rereads the graph file and refreshes the searcher and index.
// On failure the previous graph stays in service.
func (s *Server) Reload(ctx context.Context) error {
	g, err := s.load()
	if err != nil {
		return err
	}
	s.current.Store(g)
	if err := s.searcher.Reload(ctx); err != nil {
		return err
	}
	return s.index.Rebuild(ctx, g)
}

// Report returns the extraction report of the current graph, rebuilding it
// after a reload.
func (s *Server) Report() (*report.Report, error) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	g := s.current.Load()
	if s.report != nil && s.reportFor == g {
		return s.report, nil
	}
	r, err := report.Build(g)
	if err != nil {
		return nil, err
	}
	s.report, s.reportFor = r, g
	return r, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Start(ctx)
		defer s.watcher.Stop()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp.serve", "transport", "stdio")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		s.logger.Info("mcp.shutdown")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases all resources.
func (s *Server) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.index != nil {
		s.index.Close()
	}
	if s.searcher != nil {
		return s.searcher.Close()
	}
	return nil
}
