package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cmdnice/internal/diag"
	"cmdnice/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectUnits(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"a.js", "sub/b.js", "sub/c.css", "d.js"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("define({});"), 0o644))
	}

	units, err := collectUnits(root, nil, ".js")
	require.NoError(t, err)
	assert.Len(t, units, 3)

	units, err = collectUnits(root, []string{filepath.Join(root, "sub"), filepath.Join(root, "d.js")}, ".js", ".css")
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, filepath.Join(root, "d.js"), units[2].Path)

	t.Run("Overlapping arguments", func(t *testing.T) {
		units, err := collectUnits(root, []string{
			filepath.Join(root, "sub"),
			filepath.Join(root, "sub", "b.js"),
			filepath.Join(root, "sub", "b.js"),
		}, ".js")
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, filepath.Join(root, "sub", "b.js"), units[0].Path)
	})

	_, err = collectUnits(root, []string{filepath.Join(root, "missing.js")}, ".js")
	assert.Error(t, err)
}

func TestResultTable(t *testing.T) {
	data := resultTable("/proj", []pipeline.Result{
		{Source: "/proj/app/a.js", Output: "x"},
		{Source: "/proj/app/b.js", Err: diag.NotModule("/proj/app/b.js")},
		{Source: "/elsewhere/c.js", Err: errors.New("boom")},
	})

	assert.Equal(t, []string{"Source", "Status", "Message"}, data.Headers)
	assert.Equal(t, []string{"app/a.js", "ok", ""}, data.Rows[0])
	assert.Equal(t, []string{"app/b.js", "warn", "/proj/app/b.js is not CMD format"}, data.Rows[1])
	assert.Equal(t, []string{"/elsewhere/c.js", "error", "boom"}, data.Rows[2])
}

func TestExitError(t *testing.T) {
	inner := errors.New("2 of 3 files failed")
	err := &ExitError{Code: 1, Err: inner}
	assert.Equal(t, "2 of 3 files failed", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())
}
