package parsers

import (
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps language tags and file extensions to adapters.
type Registry struct {
	adapters   map[string]Adapter
	extensions map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters:   make(map[string]Adapter),
		extensions: make(map[string]string),
	}
}

// DefaultRegistry returns a registry holding every built-in adapter.
func DefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry()
	r.Register(NewRustParser(opts...))
	r.Register(NewTypeScriptParser(opts...))
	r.Register(NewTSXParser(opts...))
	r.Register(NewJavaParser(opts...))
	r.Register(NewPythonParser(opts...))
	r.Register(NewPhpParser(opts...))
	r.Register(NewRubyParser(opts...))
	r.Register(NewCParser(opts...))
	return r
}

// Register adds an adapter, replacing any adapter with the same tag.
func (r *Registry) Register(a Adapter) {
	lang := a.Language()
	r.adapters[lang.Name] = a
	for _, ext := range lang.Extensions {
		r.extensions[strings.ToLower(ext)] = lang.Name
	}
}

// MapExtension routes an extension to a language tag.
func (r *Registry) MapExtension(ext, language string) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.extensions[strings.ToLower(ext)] = language
}

// Get returns the adapter for a language tag.
func (r *Registry) Get(language string) (Adapter, bool) {
	a, ok := r.adapters[language]
	return a, ok
}

// Detect returns the language tag for a path based on its extension.
func (r *Registry) Detect(path string) (string, bool) {
	lang, ok := r.extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", false
	}
	_, registered := r.adapters[lang]
	return lang, registered
}

// Languages returns the registered language tags in sorted order.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		langs = append(langs, name)
	}
	sort.Strings(langs)
	return langs
}

// Restrict drops every adapter not named in languages. An empty list keeps all.
func (r *Registry) Restrict(languages []string) {
	if len(languages) == 0 {
		return
	}
	keep := make(map[string]bool, len(languages))
	for _, l := range languages {
		keep[l] = true
	}
	for name := range r.adapters {
		if !keep[name] {
			delete(r.adapters, name)
		}
	}
}
