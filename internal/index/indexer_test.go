package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cmdnice/internal/crawler"
	"cmdnice/internal/graph"
	"cmdnice/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestIndexer_BuildGraph(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app/main.js": `define(["./a", "lib/b", "jquery", "./missing"], function() {});`,
		"app/a.js":    `define(function(require) { require("lib/b"); });`,
		"lib/b.js":    `define([], function() {});`,
		"plain.js":    `var x = 1;`,
		"broken.js":   `define([, function( {`,
	})
	r := resolver.New(resolver.Options{Root: root, Paths: []string{root}})
	idx := NewIndexer(crawler.NewCrawler(".js"), r, nil)

	g, err := idx.BuildGraph(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"app/main", "app/a", "lib/b"}, g.SortedIDs())

	var ids []string
	for _, e := range g.Edges {
		if e.From == "app/main" {
			ids = append(ids, e.To)
		}
	}
	assert.ElementsMatch(t, []string{"app/a", "lib/b"}, ids)
	assert.Len(t, g.GetDependents("lib/b"), 2)

	counts := g.UnresolvedReasonCounts()
	assert.Equal(t, 1, counts[graph.ReasonExternal])
	assert.Equal(t, 1, counts[graph.ReasonMissingFile])
	assert.Equal(t, 1, counts[graph.ReasonParseFailed])

	t.Run("JSON round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "graph.json")
		require.NoError(t, idx.SaveGraph(g, path))

		loaded, err := idx.LoadGraph(path)
		require.NoError(t, err)
		assert.Equal(t, g.SortedIDs(), loaded.SortedIDs())
		assert.Len(t, loaded.Edges, len(g.Edges))

		n, ok := loaded.ModuleByPath(filepath.Join(root, "lib", "b.js"))
		require.True(t, ok)
		assert.Equal(t, "lib/b", n.Module.ID)
	})
}
