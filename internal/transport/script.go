package transport

import (
	"context"
	"io"
	"path/filepath"

	"cmdnice/internal/cache"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/formatter"
	"cmdnice/internal/graph"
	"cmdnice/internal/resolver"
	"cmdnice/internal/rewriter"

	"github.com/charmbracelet/log"
)

type ScriptOptions struct {
	Walker   *graph.Walker
	Cache    *cache.Cache
	Beautify bool
	Logger   *log.Logger
}

// Script normalizes a script module: it names the module after its file,
// declares the full dependency closure and rewrites inline requires to
// canonical ids.
type Script struct {
	walker   *graph.Walker
	resolver *resolver.Resolver
	cache    *cache.Cache
	beautify bool
	logger   *log.Logger
}

func NewScript(opts ScriptOptions) *Script {
	if opts.Cache == nil {
		opts.Cache = cache.New(false)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Script{
		walker:   opts.Walker,
		resolver: opts.Walker.Resolver(),
		cache:    opts.Cache,
		beautify: opts.Beautify,
		logger:   opts.Logger,
	}
}

func (s *Script) Compile(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	return s.Execute(ctx, unit)
}

func (s *Script) Execute(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	entry, err := s.load(ctx, unit)
	if err != nil {
		return "", err
	}
	meta := entry.Meta

	closure, err := s.walker.Expand(ctx, unit.Path, meta)
	if err != nil {
		return "", err
	}
	deps := make([]string, len(closure))
	for i, id := range closure {
		deps[i] = s.resolver.TransformID(id)
	}

	dir := filepath.Dir(unit.Path)
	out, err := rewriter.Rewrite(ctx, entry.Tree, rewriter.Options{
		ID:           s.resolver.ModuleID(unit.Path),
		Dependencies: deps,
		RequireFunc: func(name string) string {
			res := s.resolver.Resolve(name, dir)
			if !res.Resolved() {
				return name
			}
			return s.resolver.TransformID(res.ID)
		},
	})
	if err != nil {
		s.logger.Error("rewrite failed", "source", unit.Path, "dependencies", deps, "err", err)
		return "", diag.OutputFailed(unit.Path, err)
	}

	code := out.String()
	if s.beautify {
		code = formatter.Format(code, formatter.KindJS)
	}
	return code, nil
}

// load parses the entry from the content the driver handed in, sharing the
// walker's tree cache.
func (s *Script) load(ctx context.Context, unit extractor.SourceUnit) (*cache.TreeEntry, error) {
	if entry, ok := s.cache.Tree(unit.Path); ok && entry.Meta != nil {
		return entry, nil
	}
	tree, meta, err := extractor.LoadModule(ctx, unit)
	if err != nil {
		return nil, err
	}
	return s.cache.StoreTree(unit.Path, &cache.TreeEntry{Tree: tree, Meta: meta}), nil
}
