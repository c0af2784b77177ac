// Package config loads usagegraph configuration from
// .usagegraph/config.yml with USAGEGRAPH_* environment overrides.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/usagegraph/internal/cache"
	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/indexer"
	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
)

// Config represents the complete usagegraph configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Languages  LanguagesConfig  `yaml:"languages" mapstructure:"languages"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig defines which files to extract and which to ignore.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns, empty means every supported file
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// LanguagesConfig selects adapters.
type LanguagesConfig struct {
	Enabled    []string          `yaml:"enabled" mapstructure:"enabled"`       // language tags, empty means all
	Extensions map[string]string `yaml:"extensions" mapstructure:"extensions"` // extension without the dot -> language tag
}

// ExtractionConfig tunes the extraction run.
type ExtractionConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`                 // 0 means one per CPU
	FileTimeout   time.Duration `yaml:"file_timeout" mapstructure:"file_timeout"`       // per-file parse limit
	MaxErrorRatio float64       `yaml:"max_error_ratio" mapstructure:"max_error_ratio"` // share of error bytes before a file is rejected
	CacheSize     int           `yaml:"cache_size" mapstructure:"cache_size"`           // parse cache entries for watch mode
}

// OutputConfig defines where results are written.
type OutputConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`       // relative to the project root unless absolute
	Format string `yaml:"format" mapstructure:"format"` // "json" or "yaml"
	SQLite bool   `yaml:"sqlite" mapstructure:"sqlite"` // also write usage-graph.db
	Report bool   `yaml:"report" mapstructure:"report"` // also write report.json
}

// LogConfig configures the slog handler installed by the CLI.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Include: []string{},
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				"dist/**",
				"build/**",
				"target/**",
				"__pycache__/**",
				indexer.StateDir + "/**",
			},
		},
		Languages: LanguagesConfig{
			Enabled:    []string{},
			Extensions: map[string]string{},
		},
		Extraction: ExtractionConfig{
			Workers:       0,
			FileTimeout:   indexer.DefaultFileTimeout,
			MaxErrorRatio: parsers.DefaultMaxErrorRatio,
			CacheSize:     cache.DefaultCapacity,
		},
		Output: OutputConfig{
			Dir:    indexer.StateDir,
			Format: "json",
			SQLite: false,
			Report: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Registry builds the adapter registry selected by the languages and
// extraction sections.
func (c *Config) Registry() *parsers.Registry {
	r := parsers.DefaultRegistry(parsers.WithMaxErrorRatio(c.Extraction.MaxErrorRatio))
	r.Restrict(c.Languages.Enabled)
	for ext, lang := range c.Languages.Extensions {
		r.MapExtension(ext, lang)
	}
	return r
}

// OutputDir resolves the output directory against rootDir.
func (c *Config) OutputDir(rootDir string) string {
	if filepath.IsAbs(c.Output.Dir) {
		return c.Output.Dir
	}
	return filepath.Join(rootDir, c.Output.Dir)
}

// GraphFormat returns the output format as a graph file format.
func (c *Config) GraphFormat() graph.Format {
	return graph.Format(strings.ToLower(c.Output.Format))
}
