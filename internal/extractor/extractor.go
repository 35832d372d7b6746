package extractor

import (
	"context"
	"errors"
	"regexp"

	"cmdnice/internal/diag"

	sitter "github.com/smacker/go-tree-sitter"
)

const (
	// DefineName is the module declaration call.
	DefineName = "define"
	// RequireName is the require binding used when the factory declares no parameters.
	RequireName = "require"
)

// placeholderRe matches injected runtime configuration such as "{locale}",
// which is not a module reference.
var placeholderRe = regexp.MustCompile(`\{.*?\}`)

// ModuleMeta describes the first module declaration in a tree.
// An empty ID means the declaration carries no id.
type ModuleMeta struct {
	ID           string
	Dependencies []string

	// DependencyNode is the array literal the dependencies were read from,
	// nil when they were inferred from the factory body.
	DependencyNode *sitter.Node
	Factory        *sitter.Node
	Call           *sitter.Node
	RequireName    string
}

// ExtractFirst returns the metadata of the first define(...) call found by a
// depth-first traversal, or nil when the tree declares no module.
func ExtractFirst(tree *SyntaxTree) *ModuleMeta {
	if tree == nil {
		return nil
	}
	source := tree.Source()
	var meta *ModuleMeta
	Walk(tree.Root(), func(n *sitter.Node) bool {
		if meta != nil {
			return false
		}
		if !IsCallTo(n, DefineName, source) {
			return true
		}
		meta = parseDefine(n, source)
		return false
	})
	return meta
}

// LoadModule parses a unit and extracts its declaration, classifying every
// failure into the diag taxonomy.
func LoadModule(ctx context.Context, unit SourceUnit) (*SyntaxTree, *ModuleMeta, error) {
	tree, err := Parse(ctx, []byte(unit.Content))
	if err != nil {
		return nil, nil, ClassifyParseError(unit.Path, err)
	}
	meta := ExtractFirst(tree)
	if meta == nil {
		return tree, nil, diag.NotModule(unit.Path)
	}
	return tree, meta, nil
}

// ClassifyParseError maps a Parse error onto a diagnostic for source.
func ClassifyParseError(source string, err error) *diag.Diagnostic {
	var perr *ParseError
	if errors.As(err, &perr) {
		return diag.SyntaxError(source, perr.Line, perr.Col).Wrap(err)
	}
	return diag.ParseFailed(source).Wrap(err)
}

// IsCallTo reports whether n is a call of the plain identifier name.
func IsCallTo(n *sitter.Node, name string, source []byte) bool {
	if n == nil || n.Type() != "call_expression" {
		return false
	}
	fn := n.ChildByFieldName("function")
	return fn != nil && fn.Type() == "identifier" && fn.Content(source) == name
}

// Arguments returns the argument nodes of a call, comments excluded.
func Arguments(call *sitter.Node) []*sitter.Node {
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil
	}
	var args []*sitter.Node
	for i := 0; i < int(argsNode.NamedChildCount()); i++ {
		child := argsNode.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		args = append(args, child)
	}
	return args
}

// IsFunction reports whether n is a function literal usable as a factory.
func IsFunction(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "function", "function_expression", "arrow_function", "generator_function":
		return true
	}
	return false
}

// FirstParamName returns the name bound to the factory's first formal
// parameter, or RequireName when there is none.
func FirstParamName(factory *sitter.Node, source []byte) string {
	if !IsFunction(factory) {
		return RequireName
	}
	if p := factory.ChildByFieldName("parameter"); p != nil && p.Type() == "identifier" {
		return p.Content(source)
	}
	params := factory.ChildByFieldName("parameters")
	if params == nil {
		return RequireName
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "comment":
			continue
		case "identifier":
			return p.Content(source)
		case "assignment_pattern":
			if left := p.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
				return left.Content(source)
			}
		}
		break
	}
	return RequireName
}

func parseDefine(call *sitter.Node, source []byte) *ModuleMeta {
	args := Arguments(call)
	if len(args) == 0 {
		return nil
	}

	meta := &ModuleMeta{Call: call}
	switch len(args) {
	case 1:
		// define(function(require, exports, module) {})
		meta.Factory = args[0]
		if IsFunction(meta.Factory) {
			meta.Dependencies = ScanRequires(meta.Factory, source)
		}
	case 2:
		meta.Factory = args[1]
		switch first := args[0]; first.Type() {
		case "array":
			// define([...], function() {})
			meta.Dependencies = arrayStrings(first, source)
			meta.DependencyNode = first
		case "string":
			// define("id", function() {})
			meta.ID, _ = StringValue(first, source)
			meta.Dependencies = ScanRequires(meta.Factory, source)
		}
	default:
		meta.Factory = args[2]
		if id, ok := StringValue(args[0], source); ok {
			meta.ID = id
		}
		switch second := args[1]; {
		case second.Type() == "array":
			meta.Dependencies = arrayStrings(second, source)
			meta.DependencyNode = second
		case isNoValue(second, source):
			if IsFunction(meta.Factory) {
				meta.Dependencies = ScanRequires(meta.Factory, source)
			}
		}
	}
	meta.RequireName = FirstParamName(meta.Factory, source)
	if meta.Dependencies == nil {
		meta.Dependencies = []string{}
	}
	return meta
}

func isNoValue(n *sitter.Node, source []byte) bool {
	switch n.Type() {
	case "null", "undefined":
		return true
	case "identifier":
		return n.Content(source) == "undefined"
	}
	return false
}

// arrayStrings collects the string literal elements of an array; any other
// element is ignored.
func arrayStrings(array *sitter.Node, source []byte) []string {
	deps := []string{}
	for i := 0; i < int(array.NamedChildCount()); i++ {
		if v, ok := StringValue(array.NamedChild(i), source); ok {
			deps = append(deps, v)
		}
	}
	return deps
}

// ScanRequires infers dependencies from single-argument string literal
// calls to the factory's require binding.
func ScanRequires(factory *sitter.Node, source []byte) []string {
	name := FirstParamName(factory, source)
	body := factory.ChildByFieldName("body")
	if body == nil {
		body = factory
	}

	deps := []string{}
	Walk(body, func(n *sitter.Node) bool {
		if !IsCallTo(n, name, source) {
			return true
		}
		args := Arguments(n)
		if len(args) == 1 {
			if v, ok := StringValue(args[0], source); ok && !placeholderRe.MatchString(v) {
				deps = append(deps, v)
			}
		}
		return false
	})
	return deps
}
