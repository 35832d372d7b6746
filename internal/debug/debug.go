package debug

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/formatter"
	"cmdnice/internal/resolver"
	"cmdnice/internal/rewriter"

	"github.com/charmbracelet/log"
)

const (
	DefaultPostfix = "-debug"
	defaultExt     = ".js"
)

type Options struct {
	// Resolver is used to name anonymous modules after their file. Optional.
	Resolver *resolver.Resolver
	Postfix  string
	Beautify bool
	Logger   *log.Logger
}

// Generator redirects a module onto its debug-named sibling graph.
type Generator struct {
	resolver *resolver.Resolver
	postfix  string
	beautify bool
	logger   *log.Logger
}

func New(opts Options) *Generator {
	if opts.Postfix == "" {
		opts.Postfix = DefaultPostfix
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Generator{
		resolver: opts.Resolver,
		postfix:  opts.Postfix,
		beautify: opts.Beautify,
		logger:   opts.Logger,
	}
}

// Name inserts the postfix before the extension of name. A missing
// extension is taken to be .js, and a trailing .js is dropped again.
//
//	Name("a/b", "-debug")        == "a/b-debug"
//	Name("tpl/x.html", "-debug") == "tpl/x-debug.html"
func Name(name, postfix string) string {
	ext := path.Ext(name)
	if !isExtension(ext) {
		ext = defaultExt
		name += ext
	}
	name = strings.TrimSuffix(name, ext) + postfix + ext
	return strings.TrimSuffix(name, defaultExt)
}

// isExtension rejects version-like suffixes such as the ".2" of "jquery/1.7.2".
func isExtension(ext string) bool {
	if len(ext) < 2 {
		return false
	}
	c := ext[1]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Execute rewrites unit so that it declares the debug id and requires the
// debug name of each directly declared dependency.
func (g *Generator) Execute(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	tree, meta, err := extractor.LoadModule(ctx, unit)
	if err != nil {
		return "", err
	}

	id := meta.ID
	if id == "" {
		id = g.fallbackID(unit.Path)
	}

	deps := make([]string, 0, len(meta.Dependencies))
	renames := make(map[string]string, len(meta.Dependencies))
	for _, dep := range meta.Dependencies {
		debugName := Name(dep, g.postfix)
		renames[dep] = debugName
		deps = append(deps, debugName)
	}

	out, err := rewriter.Rewrite(ctx, tree, rewriter.Options{
		ID:           Name(id, g.postfix),
		Dependencies: deps,
		RequireMap:   renames,
	})
	if err != nil {
		return "", diag.OutputFailed(unit.Path, err)
	}
	g.logger.Debug("debug module generated", "source", unit.Path, "id", Name(id, g.postfix))

	code := out.String()
	if g.beautify {
		code = formatter.Format(code, formatter.KindJS)
	}
	return code, nil
}

func (g *Generator) fallbackID(file string) string {
	if g.resolver != nil {
		return g.resolver.RootRelative(file)
	}
	return filepath.Base(file)
}
