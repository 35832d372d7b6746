package bundler

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

func newTestBundler(files map[string]string, policy DuplicatePolicy) (*Bundler, *resolver.MockFS) {
	fsys := resolver.NewMockFS(files)
	return New(Options{
		Resolver:    resolver.New(resolver.Options{Root: "/proj", Paths: []string{"/proj/lib"}, FS: fsys}),
		Separator:   ";",
		UseCache:    true,
		OnDuplicate: policy,
	}), fsys
}

func unitOf(t *testing.T, fsys *resolver.MockFS, path string) extractor.SourceUnit {
	t.Helper()
	data, err := fsys.ReadFile(path)
	require.NoError(t, err)
	return extractor.SourceUnit{Path: path, Content: string(data)}
}

func TestBundler_Concat(t *testing.T) {
	b, fsys := newTestBundler(map[string]string{
		"/proj/a.js": `define("a",["./b"],function(require){});`,
		"/proj/b.js": "define(\"b\",[],function(){});\n",
		"/proj/c.js": `define("c",["b", "./b"],function(require){});`,
	}, KeepFirst)
	ctx := context.Background()

	out, err := b.Execute(ctx, unitOf(t, fsys, "/proj/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "define(\"a\",[\"./b\"],function(require){});\ndefine(\"b\",[],function(){});", out)

	t.Run("Registered module is reused by id", func(t *testing.T) {
		out, err := b.Execute(ctx, unitOf(t, fsys, "/proj/c.js"))
		require.NoError(t, err)
		assert.Equal(t, "define(\"c\",[\"b\", \"./b\"],function(require){});\ndefine(\"b\",[],function(){});", out)
		assert.Equal(t, 1, fsys.Reads("/proj/b.js"), "the second lookup is served from the tree cache")
	})

	t.Run("Entry registers its own id", func(t *testing.T) {
		content, ok := b.Cache().Content("a")
		require.True(t, ok)
		assert.Equal(t, `define("a",["./b"],function(require){});`, content)
	})
}

func TestBundler_SearchRootsAndMissing(t *testing.T) {
	b, fsys := newTestBundler(map[string]string{
		"/proj/app/main.js": `define("main",["util","./gone","jquery"],function(){});`,
		"/proj/lib/util.js": `var util = {};`,
	}, KeepFirst)

	out, err := b.Execute(context.Background(), unitOf(t, fsys, "/proj/app/main.js"))
	require.NoError(t, err)
	assert.Equal(t, "define(\"main\",[\"util\",\"./gone\",\"jquery\"],function(){});\nvar util = {};", out)
}

func TestBundler_AliasedDependency(t *testing.T) {
	fsys := resolver.NewMockFS(map[string]string{
		"/proj/app/main.js": `define("main",["u"],function(){});`,
		"/proj/lib/util.js": `var util = {};`,
	})
	b := New(Options{
		Resolver: resolver.New(resolver.Options{
			Root:  "/proj",
			Paths: []string{"/proj/lib"},
			Alias: map[string]string{"u": "util"},
			FS:    fsys,
		}),
		Separator: ";",
		UseCache:  true,
	})

	out, err := b.Execute(context.Background(), unitOf(t, fsys, "/proj/app/main.js"))
	require.NoError(t, err)
	assert.Equal(t, "define(\"main\",[\"u\"],function(){});\nvar util = {};", out)
}

func TestBundler_DuplicateIDs(t *testing.T) {
	files := map[string]string{
		"/proj/e.js":  `define("e",["./x1","./x2"],function(){});`,
		"/proj/x1.js": `define("x",[],function(){return 1});`,
		"/proj/x2.js": `define("x",[],function(){return 2});`,
	}

	t.Run("First writer wins", func(t *testing.T) {
		b, fsys := newTestBundler(files, KeepFirst)
		_, err := b.Execute(context.Background(), unitOf(t, fsys, "/proj/e.js"))
		require.NoError(t, err)
		content, _ := b.Cache().Content("x")
		assert.Equal(t, `define("x",[],function(){return 1});`, content)
	})

	t.Run("Conflict is an error", func(t *testing.T) {
		b, fsys := newTestBundler(files, FailOnDuplicate)
		_, err := b.Execute(context.Background(), unitOf(t, fsys, "/proj/e.js"))
		assert.True(t, errors.Is(err, diag.ErrDuplicateModuleID))
	})
}

func TestBundler_Failures(t *testing.T) {
	b, _ := newTestBundler(nil, KeepFirst)
	ctx := context.Background()

	t.Run("Syntax error", func(t *testing.T) {
		_, err := b.Execute(ctx, extractor.SourceUnit{Path: "/proj/bad.js", Content: "define([\n, function( {"})
		require.Error(t, err)
		d := diag.As(err)
		assert.Equal(t, diag.LevelError, d.Level)
		assert.True(t, errors.Is(err, diag.ErrParse))
		assert.Contains(t, d.Message, "parse /proj/bad.js ast failed:")
	})

	t.Run("Not a module", func(t *testing.T) {
		_, err := b.Execute(ctx, extractor.SourceUnit{Path: "/proj/plain.js", Content: "var a = 1;"})
		d := diag.As(err)
		require.NotNil(t, d)
		assert.Equal(t, diag.LevelWarn, d.Level)
		assert.Equal(t, "/proj/plain.js is not CMD format", d.Message)
	})
}

func TestBundler_CustomSeparator(t *testing.T) {
	fsys := resolver.NewMockFS(map[string]string{
		"/proj/a.js": "define(\"a\",[\"./b\"],function(){});\n",
		"/proj/b.js": "define(\"b\",[],function(){})",
	})
	b := New(Options{
		Resolver:  resolver.New(resolver.Options{Root: "/proj", FS: fsys}),
		Separator: ";;",
	})
	out, err := b.Execute(context.Background(), unitOf(t, fsys, "/proj/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "define(\"a\",[\"./b\"],function(){});;;\ndefine(\"b\",[],function(){});;", out)
}
