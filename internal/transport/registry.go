package transport

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"cmdnice/internal/extractor"
)

// ErrNoCompiler is returned for files whose extension has no compiler.
var ErrNoCompiler = errors.New("no compiler registered")

// Compiler turns one source file into module text.
type Compiler interface {
	Compile(ctx context.Context, unit extractor.SourceUnit) (string, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, unit extractor.SourceUnit) (string, error)

func (f CompilerFunc) Compile(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	return f(ctx, unit)
}

// Registry maps file extensions to compilers.
type Registry struct {
	compilers map[string]Compiler
}

func NewRegistry() *Registry {
	return &Registry{compilers: make(map[string]Compiler)}
}

// Register binds ext (with or without the leading dot) to c, replacing any
// previous binding.
func (r *Registry) Register(ext string, c Compiler) {
	r.compilers[normalizeExt(ext)] = c
}

// Lookup returns the compiler for the extension of path.
func (r *Registry) Lookup(path string) (Compiler, bool) {
	c, ok := r.compilers[normalizeExt(filepath.Ext(path))]
	return c, ok
}

func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.compilers))
	for ext := range r.compilers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Compile dispatches unit to the compiler registered for its extension.
func (r *Registry) Compile(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	c, ok := r.Lookup(unit.Path)
	if !ok {
		return "", ErrNoCompiler
	}
	return c.Compile(ctx, unit)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
