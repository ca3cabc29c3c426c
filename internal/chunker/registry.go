package chunker

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec pairs a tree-sitter grammar with a definitions query.
type LanguageSpec struct {
	Language *sitter.Language
	// Query captures top-level definitions. The outer node must be captured
	// as @def and its identifier as @name.
	Query string
	// Extensions are matched case-insensitively, with or without a dot.
	Extensions []string
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]string // ".py" → "python"
	specs map[string]*LanguageSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]string),
		specs: make(map[string]*LanguageSpec),
	}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
	for _, ext := range spec.Extensions {
		r.byExt[normalizeExt(ext)] = name
	}
}

// Lookup returns the spec and language name for a path, or nil and "".
func (r *Registry) Lookup(path string) (*LanguageSpec, string) {
	ext := normalizeExt(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byExt[ext]
	if !ok {
		return nil, ""
	}
	return r.specs[name], name
}

// LanguageName returns the language registered for path's extension, or "".
func (r *Registry) LanguageName(path string) string {
	_, name := r.Lookup(path)
	return name
}

// Languages lists registered language names in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
