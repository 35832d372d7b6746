package bundler

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"cmdnice/internal/cache"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/resolver"

	"github.com/charmbracelet/log"
)

const DefaultSeparator = ";"

// DuplicatePolicy decides what happens when two different files declare
// the same module id.
type DuplicatePolicy string

const (
	// KeepFirst keeps the content registered first and ignores later ones.
	KeepFirst DuplicatePolicy = "first"
	// FailOnDuplicate rejects the call that registers a conflicting id.
	FailOnDuplicate DuplicatePolicy = "error"
)

type Options struct {
	Resolver  *resolver.Resolver
	Separator string
	// UseCache enables the tree cache and the per-entry fragment cache.
	// The id -> content registry is always on.
	UseCache    bool
	OnDuplicate DuplicatePolicy
	// IDExtractor maps a declared dependency onto the key used for the
	// content registry lookup.
	IDExtractor func(dependency string) string
	Logger      *log.Logger
}

// Bundler concatenates an entry module with the modules it directly
// declares. Modules met along the way are registered by their declared id,
// so later calls on the same Bundler find them without touching the disk.
type Bundler struct {
	resolver    *resolver.Resolver
	cache       *cache.Cache
	separator   string
	onDuplicate DuplicatePolicy
	idExtractor func(string) string
	logger      *log.Logger
}

func New(opts Options) *Bundler {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.OnDuplicate == "" {
		opts.OnDuplicate = KeepFirst
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Bundler{
		resolver:    opts.Resolver,
		cache:       cache.New(opts.UseCache),
		separator:   opts.Separator,
		onDuplicate: opts.OnDuplicate,
		idExtractor: opts.IDExtractor,
		logger:      opts.Logger,
	}
}

// Cache exposes the bundler's own cache, mostly for inspection.
func (b *Bundler) Cache() *cache.Cache { return b.cache }

// Execute bundles unit with one level of its declared dependencies.
func (b *Bundler) Execute(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	meta, err := b.entryMeta(ctx, unit)
	if err != nil {
		return "", err
	}

	fragments, ok := b.cache.Dependencies(unit.Path)
	if !ok {
		fragments, err = b.collect(ctx, unit, meta)
		if err != nil {
			return "", err
		}
		fragments = b.cache.StoreDependencies(unit.Path, fragments)
	}
	if err := b.register(meta.ID, unit.Content, unit.Path); err != nil {
		return "", err
	}
	return b.join(fragments), nil
}

func (b *Bundler) entryMeta(ctx context.Context, unit extractor.SourceUnit) (*extractor.ModuleMeta, error) {
	if entry, ok := b.cache.Tree(unit.Path); ok && entry.Meta != nil {
		return entry.Meta, nil
	}
	tree, meta, err := extractor.LoadModule(ctx, unit)
	if err != nil {
		return nil, err
	}
	b.cache.StoreTree(unit.Path, &cache.TreeEntry{Tree: tree, Meta: meta})
	return meta, nil
}

func (b *Bundler) collect(ctx context.Context, unit extractor.SourceUnit, meta *extractor.ModuleMeta) ([]string, error) {
	fragments := []string{unit.Content}
	included := map[string]bool{unit.Path: true}
	dir := filepath.Dir(unit.Path)

	for _, dependency := range meta.Dependencies {
		if b.idExtractor != nil {
			dependency = b.idExtractor(dependency)
		}
		if content, ok := b.cache.Content(dependency); ok {
			if !included["id:"+dependency] {
				included["id:"+dependency] = true
				fragments = append(fragments, content)
			}
			continue
		}

		file, kind := b.resolver.ResolvePath(b.resolver.Rewrite(dependency), dir)
		if kind != resolver.KindRelative && kind != resolver.KindSearchRoot {
			b.logger.Debug("dependency skipped", "dependency", dependency, "from", unit.Path, "kind", kind)
			continue
		}
		if included[file] {
			continue
		}
		included[file] = true

		content, id, err := b.read(ctx, file)
		if err != nil {
			b.logger.Warn("dependency unreadable", "file", file, "err", err)
			continue
		}
		if id != "" {
			if err := b.register(id, content, file); err != nil {
				return nil, err
			}
			if included["id:"+id] {
				continue
			}
			included["id:"+id] = true
		}
		fragments = append(fragments, content)
	}
	return fragments, nil
}

// read loads a dependency file. Files that do not parse or declare no
// module are still bundled; they just cannot be registered by id.
func (b *Bundler) read(ctx context.Context, file string) (string, string, error) {
	if entry, ok := b.cache.Tree(file); ok && entry.Meta != nil && entry.Meta.ID != "" {
		if content, ok := b.cache.Content(entry.Meta.ID); ok {
			return content, entry.Meta.ID, nil
		}
	}

	data, err := b.resolver.FS().ReadFile(file)
	if err != nil {
		return "", "", err
	}
	content := string(data)

	if entry, ok := b.cache.Tree(file); ok {
		if entry.Meta == nil {
			return content, "", nil
		}
		return content, entry.Meta.ID, nil
	}
	tree, err := extractor.Parse(ctx, data)
	if err != nil {
		b.logger.Debug("dependency bundled without parsing", "file", file, "err", err)
		return content, "", nil
	}
	entry := b.cache.StoreTree(file, &cache.TreeEntry{Tree: tree, Meta: extractor.ExtractFirst(tree)})
	if entry.Meta == nil {
		return content, "", nil
	}
	return content, entry.Meta.ID, nil
}

func (b *Bundler) register(id, content, source string) error {
	if id == "" || b.cache.StoreContent(id, content) {
		return nil
	}
	existing, _ := b.cache.Content(id)
	if existing == content {
		return nil
	}
	if b.onDuplicate == FailOnDuplicate {
		return diag.New(diag.LevelError, diag.ErrDuplicateModuleID, source,
			"module id %s declared by %s is already registered", id, source)
	}
	b.logger.Warn("duplicate module id ignored", "id", id, "source", source)
	return nil
}

func (b *Bundler) join(fragments []string) string {
	trimmed := make([]string, len(fragments))
	for i, f := range fragments {
		trimmed[i] = b.trimSeparator(f)
	}
	joined := strings.Join(trimmed, b.separator+"\n")
	return b.trimSeparator(joined) + b.separator
}

func (b *Bundler) trimSeparator(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	for strings.HasSuffix(s, b.separator) {
		s = strings.TrimRightFunc(strings.TrimSuffix(s, b.separator), unicode.IsSpace)
	}
	return s
}
