package resolver

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultExtension is the script extension probed and stripped by default.
const DefaultExtension = ".js"

// Kind classifies how a specifier was resolved.
type Kind int

const (
	// KindUnresolved is a relative specifier whose file does not exist.
	KindUnresolved Kind = iota
	// KindRelative is a ./ or ../ specifier found next to the importer.
	KindRelative
	// KindSearchRoot is a bare specifier found under a search root.
	KindSearchRoot
	// KindExternal is a bare specifier with no local file; it passes through.
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindRelative:
		return "relative"
	case KindSearchRoot:
		return "search_root"
	case KindExternal:
		return "external"
	default:
		return "unresolved"
	}
}

type Options struct {
	// Root is the directory canonical ids are made relative to.
	Root string
	// Paths are the search roots probed for bare specifiers, in order.
	Paths      []string
	Alias      map[string]string
	AliasPaths map[string]string
	Extension  string
	// IDRule transforms the id of local modules. External names are never
	// passed through it.
	IDRule func(id string) string
	FS     FileSystem
}

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	Specifier string
	Rewritten string
	Kind      Kind
	// Path is the absolute file, empty for external and unresolved names.
	Path string
	// ID is the canonical identifier, empty when unresolved.
	ID string
}

func (r Resolution) Resolved() bool {
	return r.Kind != KindUnresolved
}

// Resolver maps raw dependency specifiers to canonical module ids.
// It holds no mutable state.
type Resolver struct {
	root      string
	paths     []string
	ext       string
	idRule    func(string) string
	fs        FileSystem
	rewriters *Chain
}

func New(opts Options) *Resolver {
	if opts.FS == nil {
		opts.FS = OSFileSystem{}
	}
	if opts.Extension == "" {
		opts.Extension = DefaultExtension
	}
	root := opts.Root
	if root != "" {
		if real, err := opts.FS.Realpath(root); err == nil {
			root = real
		}
	}
	return &Resolver{
		root:   root,
		paths:  append([]string(nil), opts.Paths...),
		ext:    opts.Extension,
		idRule: opts.IDRule,
		fs:     opts.FS,
		rewriters: NewChain(
			NewAliasStage(opts.Alias),
			NewPathAliasStage(opts.AliasPaths),
		),
	}
}

func (r *Resolver) FS() FileSystem    { return r.fs }
func (r *Resolver) Extension() string { return r.ext }
func (r *Resolver) Root() string      { return r.root }
func (r *Resolver) Paths() []string   { return r.paths }

// Rewrite applies the alias table and then the path-alias table.
func (r *Resolver) Rewrite(spec string) string {
	out, _ := r.rewriters.Run(spec)
	return out
}

// Trace is Rewrite with the per-stage history.
func (r *Resolver) Trace(spec string) (string, []StageResult) {
	return r.rewriters.Run(spec)
}

// IsRelative reports whether spec starts with ./ or ../.
func IsRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// ResolvePath locates the file for an already rewritten specifier.
func (r *Resolver) ResolvePath(spec, baseDir string) (string, Kind) {
	if IsRelative(spec) {
		if file, ok := r.probe(filepath.Join(baseDir, filepath.FromSlash(spec))); ok {
			return file, KindRelative
		}
		return "", KindUnresolved
	}
	if file, _, ok := r.FindInPaths(spec); ok {
		return file, KindSearchRoot
	}
	return "", KindExternal
}

// FindInPaths probes every search root in order for spec and returns the
// first regular file along with the search root it was found under.
func (r *Resolver) FindInPaths(spec string) (string, string, bool) {
	for _, p := range r.paths {
		if file, ok := r.probe(filepath.Join(p, filepath.FromSlash(spec))); ok {
			return file, p, true
		}
	}
	return "", "", false
}

func (r *Resolver) probe(candidate string) (string, bool) {
	if !strings.HasSuffix(candidate, r.ext) {
		if r.fs.IsFile(candidate + r.ext) {
			return r.realpath(candidate + r.ext), true
		}
	}
	if r.fs.IsFile(candidate) {
		return r.realpath(candidate), true
	}
	return "", false
}

func (r *Resolver) realpath(name string) string {
	if real, err := r.fs.Realpath(name); err == nil {
		return real
	}
	return filepath.Clean(name)
}

// Resolve runs the full pipeline for one specifier written in a file that
// lives in baseDir.
func (r *Resolver) Resolve(spec, baseDir string) Resolution {
	rewritten := r.Rewrite(spec)
	res := Resolution{Specifier: spec, Rewritten: rewritten}

	file, kind := r.ResolvePath(rewritten, baseDir)
	res.Kind = kind
	res.Path = file
	switch kind {
	case KindRelative:
		res.ID = r.CanonicalID(file)
	case KindSearchRoot:
		res.ID = r.StripExtension(path.Clean(rewritten))
	case KindExternal:
		res.ID = r.StripExtension(rewritten)
	}
	return res
}

// StripExtension removes the configured extension suffix.
func (r *Resolver) StripExtension(id string) string {
	return strings.TrimSuffix(id, r.ext)
}

// CanonicalID turns an absolute file path into a root-relative,
// extension-stripped, forward-slash identifier.
func (r *Resolver) CanonicalID(file string) string {
	return r.StripExtension(r.RootRelative(file))
}

// RootRelative returns file relative to the root with forward slashes,
// keeping the extension.
func (r *Resolver) RootRelative(file string) string {
	if r.root != "" {
		if rel, err := filepath.Rel(r.root, file); err == nil && !strings.HasPrefix(rel, "..") {
			return ToUnixPath(rel)
		}
	}
	return strings.TrimLeft(ToUnixPath(file), "/")
}

// IsLocal reports whether id names a file under one of the search roots.
func (r *Resolver) IsLocal(id string) bool {
	for _, p := range r.paths {
		candidate := filepath.Join(p, filepath.FromSlash(id))
		if r.fs.IsFile(candidate) || r.fs.IsFile(candidate+r.ext) {
			return true
		}
	}
	return false
}

// TransformID applies the id rule to local modules only.
func (r *Resolver) TransformID(id string) string {
	if r.idRule == nil || !r.IsLocal(id) {
		return id
	}
	return r.idRule(id)
}

// ModuleID is the id a file declares for itself: canonical id passed
// through the id rule unconditionally.
func (r *Resolver) ModuleID(file string) string {
	return r.ApplyIDRule(r.CanonicalID(file))
}

// ApplyIDRule runs the id rule without the locality check.
func (r *Resolver) ApplyIDRule(id string) string {
	if r.idRule == nil {
		return id
	}
	return r.idRule(id)
}

// TemplateRule builds an id rule from a template where {id} stands for the
// canonical id. An empty template yields nil.
func TemplateRule(tmpl string) func(string) string {
	if tmpl == "" || tmpl == "{id}" {
		return nil
	}
	return func(id string) string {
		return strings.ReplaceAll(tmpl, "{id}", id)
	}
}
