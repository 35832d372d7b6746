package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cmdnice.yaml", `
root: src
paths: [".", "/opt/shared"]
alias:
  jq: jquery
alias_paths:
  libs: vendor
id_rule: "app/{id}"
use_cache: false
concat:
  separator: ";;"
  on_duplicate_id: error
debug:
  postfix: .debug
style:
  paths: [css]
batch:
  concurrency: 4
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	root := filepath.Join(dir, "src")
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, []string{root, "/opt/shared"}, cfg.Paths)
	assert.Equal(t, map[string]string{"jq": "jquery"}, cfg.Alias)
	assert.Equal(t, map[string]string{"libs": "vendor"}, cfg.AliasPaths)
	assert.Equal(t, "app/{id}", cfg.IDRule)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.ConcatCacheEnabled(), "concat inherits use_cache")
	assert.Equal(t, ";;", cfg.Concat.Separator)
	assert.Equal(t, "error", cfg.Concat.OnDuplicateID)
	assert.Equal(t, ".debug", cfg.Debug.Postfix)
	assert.Equal(t, []string{filepath.Join(root, "css")}, cfg.Style.Paths)
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, ".js", cfg.Extension)
}

func TestLoadConfig_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cmdnice.toml", `
root = "/srv/web"
extension = "js"
strict = true

[concat]
use_cache = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/web", cfg.Root)
	assert.Equal(t, []string{"/srv/web"}, cfg.Paths)
	assert.Equal(t, ".js", cfg.Extension)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.ConcatCacheEnabled())
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, cfg.Root)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, ";", cfg.Concat.Separator)
	assert.Equal(t, "first", cfg.Concat.OnDuplicateID)
	assert.Equal(t, "-debug", cfg.Debug.Postfix)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Batch.Concurrency)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cmdnice.yaml", "root: /a\nlog_level: info\n")

	t.Setenv("CMDNICE_ROOT", "/b")
	t.Setenv("CMDNICE_LOG_LEVEL", "debug")
	t.Setenv("CMDNICE_STRICT", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/b", cfg.Root)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Strict)

	t.Setenv("CMDNICE_STRICT", "maybe")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(writeFile(t, dir, "a.yaml", "concat:\n  on_duplicate_id: last\n"))
	assert.ErrorContains(t, err, "on_duplicate_id")

	_, err = LoadConfig(writeFile(t, dir, "b.yaml", "log_level: loud\n"))
	assert.ErrorContains(t, err, "log_level")

	_, err = LoadConfig(writeFile(t, dir, "c.yaml", "paths: {"))
	assert.ErrorContains(t, err, "failed to parse config")
}
