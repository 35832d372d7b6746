package extractor

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// SyntaxTree is a parsed script. It is never mutated; rewriting produces a
// new tree from new source text.
type SyntaxTree struct {
	source []byte
	tree   *sitter.Tree
}

// ParseError is returned when the text is not syntactically valid.
// Line is 1-based, Col is 0-based.
type ParseError struct {
	Line    int
	Col     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// Parse builds a syntax tree for a script. A tree containing recovered
// syntax errors is reported as a *ParseError at the first error position.
func Parse(ctx context.Context, source []byte) (*SyntaxTree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned no tree")
	}

	root := tree.RootNode()
	if root.HasError() {
		perr := firstSyntaxError(root, source)
		tree.Close()
		return nil, perr
	}
	return &SyntaxTree{source: source, tree: tree}, nil
}

// Root returns the program node.
func (t *SyntaxTree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the text the tree was parsed from.
func (t *SyntaxTree) Source() []byte {
	return t.source
}

func (t *SyntaxTree) String() string {
	return string(t.source)
}

// Close releases the native tree. Cached trees are never closed.
func (t *SyntaxTree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
	}
}

func firstSyntaxError(root *sitter.Node, source []byte) *ParseError {
	found := deepestError(root)
	if found == nil {
		found = root
	}

	pos := found.StartPoint()
	perr := &ParseError{Line: int(pos.Row) + 1, Col: int(pos.Column)}
	end := len(bytes.TrimRight(source, " \t\r\n"))
	switch {
	case found.IsMissing():
		perr.Message = fmt.Sprintf("missing %s", found.Type())
	case int(found.EndByte()) >= end && found.EndPoint().Row > pos.Row:
		// An error spanning several lines up to the end is an unterminated
		// construct; point at where the input stops.
		perr.Line, perr.Col = position(source, end)
		perr.Message = "unexpected end of input"
	case found.EndByte() > found.StartByte():
		text := found.Content(source)
		if len(text) > 20 {
			text = text[:20] + "..."
		}
		perr.Message = fmt.Sprintf("unexpected %q", text)
	default:
		perr.Message = "unexpected end of input"
	}
	return perr
}

// deepestError follows the first erroneous child down and returns the
// innermost ERROR or MISSING node.
func deepestError(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.IsMissing() {
			return c
		}
		if !c.HasError() {
			continue
		}
		if d := deepestError(c); d != nil {
			return d
		}
		if c.IsError() {
			return c
		}
	}
	return nil
}

// position converts a byte offset to a 1-based line and 0-based column.
func position(source []byte, offset int) (int, int) {
	before := source[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	return line, offset - (bytes.LastIndexByte(before, '\n') + 1)
}

// Walk visits named nodes in depth-first preorder. visit returns false to
// skip the children of n; walking continues with the next sibling.
func Walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), visit)
	}
}
