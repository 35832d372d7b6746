package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"cmdnice/internal/cssimport"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/formatter"
	"cmdnice/internal/resolver"
)

var lineBreakRe = regexp.MustCompile(`\r\n|\r|\n`)

// contentModule wraps a value expression in an anonymous-dependency module.
func contentModule(id, body string) string {
	return fmt.Sprintf("define(%s, [], function(require, exports, module) {\n%s\n});\n",
		extractor.QuoteString(id, '"'), body)
}

// contentID names non-script modules after their file, extension kept.
func contentID(r *resolver.Resolver, path string) string {
	return r.ApplyIDRule(r.RootRelative(path))
}

// JSON exports a JSON document.
type JSON struct {
	Resolver *resolver.Resolver
	Beautify bool
}

func (j JSON) Compile(_ context.Context, unit extractor.SourceUnit) (string, error) {
	if !json.Valid([]byte(unit.Content)) {
		return "", diag.New(diag.LevelError, diag.ErrCompile, unit.Path, "%s is not valid JSON", unit.Path)
	}
	code := contentModule(contentID(j.Resolver, unit.Path),
		"module.exports = "+strings.TrimSpace(unit.Content)+";")
	if j.Beautify {
		code = formatter.Format(code, formatter.KindJS)
	}
	return code, nil
}

// Text exports a file as a string, line breaks preserved.
type Text struct {
	Resolver *resolver.Resolver
	Beautify bool
}

func (t Text) Compile(_ context.Context, unit extractor.SourceUnit) (string, error) {
	code := contentModule(contentID(t.Resolver, unit.Path),
		"module.exports = "+escapeText(unit.Content)+";")
	if t.Beautify {
		code = formatter.Format(code, formatter.KindJS)
	}
	return code, nil
}

func escapeText(content string) string {
	lines := lineBreakRe.Split(content, -1)
	return extractor.QuoteString(strings.Join(lines, "\n"), '\'')
}

// Style inlines imports, minifies the stylesheet and registers it with the
// loader at runtime.
type Style struct {
	Resolver *resolver.Resolver
	Inliner  *cssimport.Inliner
	Beautify bool
}

func (s Style) Compile(ctx context.Context, unit extractor.SourceUnit) (string, error) {
	css := unit.Content
	if s.Inliner != nil {
		inlined, err := s.Inliner.Inline(ctx, css, unit.Path)
		if err != nil {
			return "", diag.New(diag.LevelError, diag.ErrCompile, unit.Path, "inline imports of %s failed", unit.Path).Wrap(err)
		}
		css = inlined
	}
	css = formatter.Minify(css, formatter.KindCSS)

	code := contentModule(contentID(s.Resolver, unit.Path),
		"seajs.importStyle("+extractor.QuoteString(css, '\'')+");")
	if s.Beautify {
		code = formatter.Format(code, formatter.KindJS)
	}
	return code, nil
}
