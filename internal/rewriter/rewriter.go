package rewriter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrNothingToRewrite is returned, together with the untouched tree, when
// neither an id nor dependencies were supplied.
var ErrNothingToRewrite = errors.New("neither id nor dependencies supplied")

// Options describes the declaration to emit.
type Options struct {
	// ID replaces the declared id. IDFunc, when set, takes precedence and
	// receives the previously declared id ("" when there was none).
	ID     string
	IDFunc func(declared string) string

	// Dependencies replaces the dependency array. Nil means "not supplied"
	// and emits an empty array.
	Dependencies []string

	// RequireMap and RequireFunc rename the string argument of every
	// single-argument require call. Names missing from the map pass through.
	RequireMap  map[string]string
	RequireFunc func(name string) string
}

func (o Options) requireFn() func(string) string {
	if o.RequireFunc != nil {
		return o.RequireFunc
	}
	if o.RequireMap != nil {
		table := o.RequireMap
		return func(name string) string {
			if v, ok := table[name]; ok {
				return v
			}
			return name
		}
	}
	return nil
}

type edit struct {
	start, end int
	text       string
}

// Rewrite returns a new tree whose first module declaration carries the
// requested id and dependencies. The factory is copied byte for byte; the
// only other change is the renaming of require call arguments.
func Rewrite(ctx context.Context, tree *extractor.SyntaxTree, opts Options) (*extractor.SyntaxTree, error) {
	if opts.ID == "" && opts.IDFunc == nil && opts.Dependencies == nil {
		return tree, ErrNothingToRewrite
	}
	meta := extractor.ExtractFirst(tree)
	if meta == nil {
		return tree, diag.ErrNotModule
	}

	source := tree.Source()
	args := extractor.Arguments(meta.Call)

	id := meta.ID
	switch {
	case opts.IDFunc != nil:
		id = opts.IDFunc(meta.ID)
	case opts.ID != "":
		id = opts.ID
	}

	sep := argumentSeparator(source, args, meta.Factory)
	var head []string
	if id != "" {
		head = append(head, extractor.QuoteString(id, '"'))
	}
	head = append(head, arrayLiteral(opts.Dependencies, sep))

	start := int(args[0].StartByte())
	end := int(meta.Factory.StartByte())
	rewritten := applyEdits(source, []edit{{start: start, end: end, text: strings.Join(head, sep) + sep}})

	out, err := extractor.Parse(ctx, rewritten)
	if err != nil {
		return tree, fmt.Errorf("re-parse rewritten declaration: %w", err)
	}

	if fn := opts.requireFn(); fn != nil {
		out, err = replaceRequires(ctx, out, meta.RequireName, fn)
		if err != nil {
			return tree, err
		}
	}
	return out, nil
}

// argumentSeparator keeps compact declarations compact.
func argumentSeparator(source []byte, args []*sitter.Node, factory *sitter.Node) string {
	if len(args) < 2 {
		return ", "
	}
	between := string(source[args[0].StartByte():factory.StartByte()])
	if strings.Contains(between, ",") && !strings.Contains(between, ", ") && !strings.Contains(between, ",\n") {
		return ","
	}
	return ", "
}

func arrayLiteral(items []string, sep string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = extractor.QuoteString(item, '"')
	}
	return "[" + strings.Join(quoted, sep) + "]"
}

// replaceRequires renames the literal argument of every call to requireName
// taking exactly one string argument, anywhere in the tree.
func replaceRequires(ctx context.Context, tree *extractor.SyntaxTree, requireName string, fn func(string) string) (*extractor.SyntaxTree, error) {
	source := tree.Source()
	var edits []edit
	extractor.Walk(tree.Root(), func(n *sitter.Node) bool {
		if !extractor.IsCallTo(n, requireName, source) {
			return true
		}
		args := extractor.Arguments(n)
		if len(args) != 1 {
			return true
		}
		value, ok := extractor.StringValue(args[0], source)
		if !ok {
			return true
		}
		if renamed := fn(value); renamed != value {
			edits = append(edits, edit{
				start: int(args[0].StartByte()),
				end:   int(args[0].EndByte()),
				text:  extractor.QuoteString(renamed, extractor.QuoteChar(args[0], source)),
			})
		}
		return true
	})
	if len(edits) == 0 {
		return tree, nil
	}

	out, err := extractor.Parse(ctx, applyEdits(source, edits))
	if err != nil {
		return tree, fmt.Errorf("re-parse renamed requires: %w", err)
	}
	return out, nil
}

// applyEdits splices non-overlapping edits into a copy of source.
func applyEdits(source []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var sb strings.Builder
	sb.Grow(len(source))
	pos := 0
	for _, e := range edits {
		sb.Write(source[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.Write(source[pos:])
	return []byte(sb.String())
}
