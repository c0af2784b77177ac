package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
)

var (
	// ErrInvalidPattern indicates a path pattern that does not compile
	ErrInvalidPattern = errors.New("invalid path pattern")

	// ErrUnknownLanguage indicates a language tag with no adapter
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTimeout indicates a non-positive file timeout
	ErrInvalidTimeout = errors.New("invalid file timeout")

	// ErrInvalidErrorRatio indicates an error ratio outside (0, 1]
	ErrInvalidErrorRatio = errors.New("invalid max error ratio")

	// ErrInvalidCacheSize indicates a negative parse cache size
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidFormat indicates an unsupported graph output format
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrEmptyOutputDir indicates a missing output directory
	ErrEmptyOutputDir = errors.New("empty output directory")

	// ErrInvalidLogLevel indicates an unknown log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat indicates an unknown log format
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	for _, validate := range []func(*Config) error{
		validatePaths,
		validateLanguages,
		validateExtraction,
		validateOutput,
		validateLog,
	} {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	return joinErrors(errs)
}

func validatePaths(cfg *Config) error {
	var errs []error
	for _, pattern := range slices.Concat(cfg.Paths.Include, cfg.Paths.Ignore) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		}
	}
	return joinErrors(errs)
}

func validateLanguages(cfg *Config) error {
	known := parsers.DefaultRegistry().Languages()

	var errs []error
	for _, lang := range cfg.Languages.Enabled {
		if !slices.Contains(known, lang) {
			errs = append(errs, fmt.Errorf("%w: %s (valid: %s)", ErrUnknownLanguage, lang, strings.Join(known, ", ")))
		}
	}
	for ext, lang := range cfg.Languages.Extensions {
		if !slices.Contains(known, lang) {
			errs = append(errs, fmt.Errorf("%w: %s mapped from extension %s", ErrUnknownLanguage, lang, ext))
		}
	}
	return joinErrors(errs)
}

func validateExtraction(cfg *Config) error {
	var errs []error

	if cfg.Extraction.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Extraction.Workers))
	}
	if cfg.Extraction.FileTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: file_timeout must be positive, got %s", ErrInvalidTimeout, cfg.Extraction.FileTimeout))
	}
	if cfg.Extraction.MaxErrorRatio <= 0 || cfg.Extraction.MaxErrorRatio > 1 {
		errs = append(errs, fmt.Errorf("%w: max_error_ratio must be in (0, 1], got %g", ErrInvalidErrorRatio, cfg.Extraction.MaxErrorRatio))
	}
	// Zero disables the parse cache
	if cfg.Extraction.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size cannot be negative, got %d", ErrInvalidCacheSize, cfg.Extraction.CacheSize))
	}

	return joinErrors(errs)
}

func validateOutput(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		errs = append(errs, fmt.Errorf("%w: dir is required", ErrEmptyOutputDir))
	}
	format := strings.ToLower(cfg.Output.Format)
	if format != "json" && format != "yaml" {
		errs = append(errs, fmt.Errorf("%w: must be 'json' or 'yaml', got '%s'", ErrInvalidFormat, cfg.Output.Format))
	}

	return joinErrors(errs)
}

func validateLog(cfg *Config) error {
	var errs []error

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: must be debug, info, warn or error, got '%s'", ErrInvalidLogLevel, cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'text' or 'json', got '%s'", ErrInvalidLogFormat, cfg.Log.Format))
	}

	return joinErrors(errs)
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The combined error still matches each sentinel through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error {
	return e.errs
}
