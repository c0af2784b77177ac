// Package cli implements the usagegraph command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/config"
)

var (
	cfgFile string
	dirFlag string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usagegraph",
	Short: "Extract cross-language usage patterns into a queryable graph",
	Long: `usagegraph parses Rust, TypeScript, Java, Python, PHP, Ruby and C sources
and records how types are used: definitions, trait implementations,
composition, static calls, generic instantiation, typed bindings and
inheritance. The result is a usage graph that can be queried from the
command line or served to coding assistants over MCP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/.usagegraph/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "C", "", "project root (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// project is the resolved root, configuration and logger of a command run.
type project struct {
	Root   string
	Config *config.Config
	Logger *slog.Logger
}

// loadProject resolves the project root from an optional positional
// argument or --dir, loads its configuration and installs the logger.
func loadProject(args []string) (*project, error) {
	root := dirFlag
	if len(args) > 0 {
		root = args[0]
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	loader := config.NewLoader(root)
	if cfgFile != "" {
		loader = config.NewFileLoader(root, cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Log, verbose)
	slog.SetDefault(logger)

	return &project{Root: root, Config: cfg, Logger: logger}, nil
}

// newLogger builds the slog handler selected by the log section. Verbose
// forces debug level.
func newLogger(w io.Writer, c config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
