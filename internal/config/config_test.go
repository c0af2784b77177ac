package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/indexer"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load() uses defaults when no config file exists
// - Load() reads .usagegraph/config.yml and .usagegraph/config.yaml
// - Config file values merge with defaults
// - Environment variables override config file values and defaults
// - Load() returns error for malformed YAML and invalid values
// - An explicit config file must exist
// - Validate() rejects each invalid field with its sentinel error
// - Validate() reports every invalid field at once
// - Registry() honours enabled languages and extension overrides

func writeConfig(t *testing.T, rootDir, name, content string) {
	t.Helper()
	dir := filepath.Join(rootDir, indexer.StateDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)
	require.NoError(t, Validate(cfg))

	assert.Empty(t, cfg.Paths.Include)
	assert.Contains(t, cfg.Paths.Ignore, "node_modules/**")
	assert.Contains(t, cfg.Paths.Ignore, ".usagegraph/**")
	assert.Empty(t, cfg.Languages.Enabled)
	assert.Equal(t, 0, cfg.Extraction.Workers)
	assert.Equal(t, 30*time.Second, cfg.Extraction.FileTimeout)
	assert.Equal(t, ".usagegraph", cfg.Output.Dir)
	assert.Equal(t, graph.FormatJSON, cfg.GraphFormat())
	assert.False(t, cfg.Output.SQLite)
	assert.True(t, cfg.Output.Report)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromDir(t.TempDir())
	require.NoError(t, err)

	defaults := Default()
	assert.Empty(t, cfg.Paths.Include)
	assert.Equal(t, defaults.Paths.Ignore, cfg.Paths.Ignore)
	assert.Empty(t, cfg.Languages.Enabled)
	assert.Equal(t, defaults.Extraction, cfg.Extraction)
	assert.Equal(t, defaults.Output, cfg.Output)
	assert.Equal(t, defaults.Log, cfg.Log)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"config.yml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			writeConfig(t, root, name, `
paths:
  include: ["src/**"]
languages:
  enabled: [rust, typescript]
  extensions:
    rsx: rust
extraction:
  workers: 4
  file_timeout: 5s
output:
  format: yaml
  sqlite: true
`)

			cfg, err := LoadConfigFromDir(root)
			require.NoError(t, err)

			assert.Equal(t, []string{"src/**"}, cfg.Paths.Include)
			assert.Equal(t, []string{"rust", "typescript"}, cfg.Languages.Enabled)
			assert.Equal(t, map[string]string{"rsx": "rust"}, cfg.Languages.Extensions)
			assert.Equal(t, 4, cfg.Extraction.Workers)
			assert.Equal(t, 5*time.Second, cfg.Extraction.FileTimeout)
			assert.Equal(t, graph.FormatYAML, cfg.GraphFormat())
			assert.True(t, cfg.Output.SQLite)

			// Unset sections keep their defaults
			assert.Equal(t, Default().Paths.Ignore, cfg.Paths.Ignore)
			assert.True(t, cfg.Output.Report)
			assert.Equal(t, "info", cfg.Log.Level)
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
extraction:
  workers: 4
log:
  level: warn
`)
	t.Setenv("USAGEGRAPH_EXTRACTION_WORKERS", "2")
	t.Setenv("USAGEGRAPH_OUTPUT_FORMAT", "yaml")
	t.Setenv("USAGEGRAPH_EXTRACTION_FILE_TIMEOUT", "1m")

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Extraction.Workers)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, time.Minute, cfg.Extraction.FileTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeConfig(t, root, "config.yml", "extraction: [workers")
		_, err := LoadConfigFromDir(root)
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeConfig(t, root, "config.yml", "output:\n  format: xml\n")
		_, err := LoadConfigFromDir(root)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		_, err := NewFileLoader(root, filepath.Join(root, "nope.yml")).Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"bad include pattern", func(c *Config) { c.Paths.Include = []string{"src/[a"} }, ErrInvalidPattern},
		{"unknown language", func(c *Config) { c.Languages.Enabled = []string{"cobol"} }, ErrUnknownLanguage},
		{"extension to unknown language", func(c *Config) { c.Languages.Extensions = map[string]string{"cbl": "cobol"} }, ErrUnknownLanguage},
		{"negative workers", func(c *Config) { c.Extraction.Workers = -1 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.Extraction.FileTimeout = 0 }, ErrInvalidTimeout},
		{"error ratio above one", func(c *Config) { c.Extraction.MaxErrorRatio = 1.5 }, ErrInvalidErrorRatio},
		{"negative cache", func(c *Config) { c.Extraction.CacheSize = -1 }, ErrInvalidCacheSize},
		{"empty output dir", func(c *Config) { c.Output.Dir = " " }, ErrEmptyOutputDir},
		{"bad format", func(c *Config) { c.Output.Format = "toml" }, ErrInvalidFormat},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Extraction.Workers = -1
	cfg.Output.Format = "toml"
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkers)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	assert.ErrorIs(t, err, ErrInvalidLogFormat)
	assert.Contains(t, err.Error(), "validation failed:")
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Languages.Enabled = []string{"rust", "python"}
	cfg.Languages.Extensions = map[string]string{"pyw": "python"}

	r := cfg.Registry()
	assert.Equal(t, []string{"python", "rust"}, r.Languages())

	lang, ok := r.Detect("tool.pyw")
	require.True(t, ok)
	assert.Equal(t, "python", lang)

	_, ok = r.Detect("app.ts")
	assert.False(t, ok)
}

func TestOutputDir(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, filepath.Join("/repo", ".usagegraph"), cfg.OutputDir("/repo"))

	cfg.Output.Dir = "/tmp/out"
	assert.Equal(t, "/tmp/out", cfg.OutputDir("/repo"))
}
