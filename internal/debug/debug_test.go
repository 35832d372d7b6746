package debug

import (
	"context"
	"errors"
	"testing"

	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	cases := map[string]string{
		"mod":               "mod-debug",
		"app/main.js":       "app/main-debug",
		"tpl/list.html":     "tpl/list-debug.html",
		"./rel":             "./rel-debug",
		"jquery/1.7.2/main": "jquery/1.7.2/main-debug",
		"gallery/1.7.2":     "gallery/1.7.2-debug",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Name(in, "-debug"))
		})
	}
}

func TestGenerator_Execute(t *testing.T) {
	g := New(Options{})
	ctx := context.Background()

	t.Run("Declaration and requires are redirected", func(t *testing.T) {
		out, err := g.Execute(ctx, extractor.SourceUnit{
			Path:    "/proj/mod.js",
			Content: `define("mod",["dep"],function(require){var d=require("dep");var o=require("other");});`,
		})
		require.NoError(t, err)
		assert.Equal(t, `define("mod-debug",["dep-debug"],function(require){var d=require("dep-debug");var o=require("other");});`, out)
	})

	t.Run("Anonymous module is named after its file", func(t *testing.T) {
		gen := New(Options{
			Resolver: resolver.New(resolver.Options{Root: "/proj", FS: resolver.NewMockFS(map[string]string{"/proj/app/x.js": ""})}),
			Postfix:  ".dbg",
		})
		out, err := gen.Execute(ctx, extractor.SourceUnit{
			Path:    "/proj/app/x.js",
			Content: `define(function(require) { require("./y"); });`,
		})
		require.NoError(t, err)
		assert.Equal(t, `define("app/x.dbg", ["./y.dbg"], function(require) { require("./y.dbg"); });`, out)
	})

	t.Run("Not a module", func(t *testing.T) {
		_, err := g.Execute(ctx, extractor.SourceUnit{Path: "/proj/x.js", Content: "alert(1);"})
		assert.True(t, errors.Is(err, diag.ErrNotModule))
		assert.Equal(t, diag.LevelWarn, diag.As(err).Level)
	})

	t.Run("Syntax error echoes the position", func(t *testing.T) {
		_, err := g.Execute(ctx, extractor.SourceUnit{Path: "/proj/x.js", Content: "define(function() {\n  var = 1;\n});"})
		require.Error(t, err)
		d := diag.As(err)
		assert.Equal(t, 2, d.Line)
		assert.True(t, errors.Is(err, diag.ErrParse))
	})

	t.Run("Beautified output", func(t *testing.T) {
		gen := New(Options{Beautify: true})
		out, err := gen.Execute(ctx, extractor.SourceUnit{
			Path:    "/proj/m.js",
			Content: `define("m",[],function(){return 1})`,
		})
		require.NoError(t, err)
		assert.Contains(t, out, "define(\"m-debug\", [], function() {\n  return 1;\n});")
	})
}
