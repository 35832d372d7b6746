package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"cmdnice/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawler_ScanProject(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	files := map[string]string{
		"app/main.js":               `define(function() {});`,
		"app/tpl/list.HTML":         "<ul></ul>",
		"app/readme.md":             "# x",
		"node_modules/dep/index.js": "module.exports = 1;",
		".git/hooks/x.js":           "",
		"css/site.css":              "a {}",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	c := NewCrawler(".js", ".html")
	units, err := c.Collect(root)
	require.NoError(t, err)

	var rel []string
	for _, u := range units {
		r, err := filepath.Rel(root, u.Path)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"app/main.js", "app/tpl/list.HTML"}, rel)
	assert.True(t, c.Matches("x.JS"))

	t.Run("Ignored directories can be extended", func(t *testing.T) {
		c := NewCrawler(".css")
		c.Ignore("css")
		units, err := c.Collect(root)
		require.NoError(t, err)
		assert.Empty(t, units)
	})

	t.Run("Callback errors stop the walk", func(t *testing.T) {
		err := c.ScanProject(root, func(extractor.SourceUnit) error { return assert.AnError })
		assert.ErrorIs(t, err, assert.AnError)
	})
}
