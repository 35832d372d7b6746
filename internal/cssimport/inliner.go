package cssimport

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"cmdnice/internal/resolver"

	"github.com/charmbracelet/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
)

var (
	urlRe    = regexp.MustCompile(`^url\(\s*['"]?(.*?)['"]?\s*\)$`)
	quotedRe = regexp.MustCompile(`^['"](.*)['"]$`)
)

type Options struct {
	// Paths are probed, in order, for imports not found next to the importer.
	Paths  []string
	FS     resolver.FileSystem
	Logger *log.Logger
}

// Inliner replaces local @import rules with the content of the imported
// stylesheet, recursively. Remote imports, imports carrying media queries
// and imports that cannot be found are kept as written.
type Inliner struct {
	paths  []string
	fs     resolver.FileSystem
	logger *log.Logger
}

func New(opts Options) *Inliner {
	if opts.FS == nil {
		opts.FS = resolver.OSFileSystem{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Inliner{paths: opts.Paths, fs: opts.FS, logger: opts.Logger}
}

// Inline returns content, read from source, with its imports expanded.
func (in *Inliner) Inline(ctx context.Context, content, source string) (string, error) {
	return in.inline(ctx, content, source, map[string]bool{filepath.Clean(source): true})
}

type edit struct {
	start, end uint32
	text       string
}

func (in *Inliner) inline(ctx context.Context, content, source string, visiting map[string]bool) (string, error) {
	src := []byte(content)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(css.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parse stylesheet %s: %w", source, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var edits []edit
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "import_statement" || stmt.HasError() {
			continue
		}
		target, ok := importTarget(stmt, src)
		if !ok || isRemote(target) {
			continue
		}
		file, ok := in.find(target, source)
		if !ok {
			in.logger.Debug("import kept", "import", target, "from", source)
			continue
		}
		if visiting[file] {
			in.logger.Warn("import cycle cut", "import", file, "from", source)
			edits = append(edits, edit{start: stmt.StartByte(), end: stmt.EndByte()})
			continue
		}

		data, err := in.fs.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read import %s: %w", file, err)
		}
		visiting[file] = true
		expanded, err := in.inline(ctx, string(data), file, visiting)
		delete(visiting, file)
		if err != nil {
			return "", err
		}
		edits = append(edits, edit{start: stmt.StartByte(), end: stmt.EndByte(), text: strings.TrimSpace(expanded)})
	}

	var sb strings.Builder
	pos := uint32(0)
	for _, e := range edits {
		sb.Write(src[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.Write(src[pos:])
	return sb.String(), nil
}

// importTarget returns the location an import statement names. Statements
// with anything after the location, such as a media query, are rejected.
func importTarget(stmt *sitter.Node, src []byte) (string, bool) {
	if stmt.NamedChildCount() != 1 {
		return "", false
	}
	value := strings.TrimSpace(stmt.NamedChild(0).Content(src))
	if m := urlRe.FindStringSubmatch(value); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := quotedRe.FindStringSubmatch(value); m != nil {
		return m[1], true
	}
	return "", false
}

func isRemote(target string) bool {
	return strings.HasPrefix(target, "//") ||
		strings.HasPrefix(target, "http:") ||
		strings.HasPrefix(target, "https:") ||
		strings.HasPrefix(target, "data:")
}

func (in *Inliner) find(target, source string) (string, bool) {
	name := filepath.FromSlash(target)
	candidates := []string{filepath.Join(filepath.Dir(source), name)}
	for _, p := range in.paths {
		candidates = append(candidates, filepath.Join(p, name))
	}
	for _, c := range candidates {
		if in.fs.IsFile(c) {
			return filepath.Clean(c), true
		}
	}
	return "", false
}
