package graph

import (
	"context"
	"io"
	"path/filepath"

	"cmdnice/internal/cache"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/resolver"

	"github.com/charmbracelet/log"
)

type WalkerOptions struct {
	Resolver *resolver.Resolver
	Cache    *cache.Cache
	Logger   *log.Logger
	// Strict turns dropped dependencies and cycles into errors.
	Strict bool
}

// Walker computes transitive dependency closures. It is safe for concurrent
// use as long as the cache it shares is.
type Walker struct {
	resolver *resolver.Resolver
	cache    *cache.Cache
	logger   *log.Logger
	strict   bool
}

func NewWalker(opts WalkerOptions) *Walker {
	if opts.Cache == nil {
		opts.Cache = cache.New(false)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Walker{
		resolver: opts.Resolver,
		cache:    opts.Cache,
		logger:   opts.Logger,
		strict:   opts.Strict,
	}
}

func (w *Walker) Resolver() *resolver.Resolver { return w.resolver }

// walk is the state of one closure computation.
type walk struct {
	*Walker
	inProgress map[string]bool
	// cuts holds the in-progress files a cycle was cut at. A result computed
	// while any of them is still open is partial and must not be cached.
	cuts map[string]bool
}

func (w *Walker) begin() *walk {
	return &walk{Walker: w, inProgress: make(map[string]bool), cuts: make(map[string]bool)}
}

// Closure resolves spec against baseDir and returns the ordered,
// de-duplicated ids of everything the resolved file transitively requires.
// Specifiers that resolve to no file yield an empty closure.
func (w *Walker) Closure(ctx context.Context, spec, baseDir string) ([]string, error) {
	res := w.resolver.Resolve(spec, baseDir)
	if res.Path == "" {
		if !res.Resolved() && w.strict {
			return nil, diag.New(diag.LevelError, diag.ErrUnresolvedDependency, spec,
				"cannot resolve %s from %s", spec, baseDir)
		}
		return []string{}, nil
	}
	return copied(w.begin().closure(ctx, res.Path))
}

// FileClosure is Closure for an absolute file path.
func (w *Walker) FileClosure(ctx context.Context, file string) ([]string, error) {
	return copied(w.begin().closure(ctx, file))
}

// copied detaches a result from the dependency cache.
func copied(deps []string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return append([]string{}, deps...), nil
}

// Expand returns the closure of a module that has already been loaded, such
// as an entry file handed in by a driver. The entry itself is marked in
// progress so a dependency cycling back to it is cut.
func (w *Walker) Expand(ctx context.Context, file string, meta *extractor.ModuleMeta) ([]string, error) {
	s := w.begin()
	s.inProgress[file] = true
	return s.expand(ctx, file, meta)
}

func (s *walk) closure(ctx context.Context, file string) ([]string, error) {
	if deps, ok := s.cache.Dependencies(file); ok {
		return deps, nil
	}
	if s.inProgress[file] {
		if s.strict {
			return nil, diag.New(diag.LevelError, diag.ErrCyclicDependency, file,
				"cyclic dependency through %s", file)
		}
		s.logger.Debug("cycle cut", "file", file)
		s.cuts[file] = true
		return []string{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.inProgress[file] = true
	defer delete(s.inProgress, file)

	entry, err := s.Load(ctx, file)
	if err != nil {
		if s.strict {
			return nil, err
		}
		s.logger.Error("dependency dropped", "file", file, "err", err)
		return []string{}, nil
	}

	deps := []string{}
	if entry.Meta != nil {
		deps, err = s.expand(ctx, file, entry.Meta)
		if err != nil {
			return nil, err
		}
	}

	delete(s.cuts, file)
	if len(s.cuts) == 0 {
		deps = s.cache.StoreDependencies(file, deps)
	}
	return deps, nil
}

// expand resolves the declared dependencies of the module in file and unions
// in each one's own closure, in depth-first preorder.
func (s *walk) expand(ctx context.Context, file string, meta *extractor.ModuleMeta) ([]string, error) {
	dir := filepath.Dir(file)
	out := []string{}
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, spec := range meta.Dependencies {
		res := s.resolver.Resolve(spec, dir)
		if !res.Resolved() {
			if s.strict {
				return nil, diag.New(diag.LevelError, diag.ErrUnresolvedDependency, file,
					"cannot resolve %s from %s", spec, file)
			}
			s.logger.Debug("dependency not found", "specifier", spec, "from", file)
			continue
		}
		add(res.ID)
		if res.Path == "" {
			continue
		}
		sub, err := s.closure(ctx, res.Path)
		if err != nil {
			return nil, err
		}
		for _, id := range sub {
			add(id)
		}
	}
	return out, nil
}

// Load returns the cached tree and declaration for file, reading and parsing
// it on first use. Meta is nil for files that declare no module.
func (w *Walker) Load(ctx context.Context, file string) (*cache.TreeEntry, error) {
	if entry, ok := w.cache.Tree(file); ok {
		return entry, nil
	}
	data, err := w.resolver.FS().ReadFile(file)
	if err != nil {
		return nil, diag.ParseFailed(file).Wrap(err)
	}
	tree, err := extractor.Parse(ctx, data)
	if err != nil {
		return nil, extractor.ClassifyParseError(file, err)
	}
	entry := &cache.TreeEntry{Tree: tree, Meta: extractor.ExtractFirst(tree)}
	return w.cache.StoreTree(file, entry), nil
}
