package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cmdnice/internal/extractor"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Func is one operation run per file: a transport compiler, the bundler or
// the debug generator.
type Func func(ctx context.Context, unit extractor.SourceUnit) (string, error)

// Result is the outcome for one input file.
type Result struct {
	Source string `json:"src"`
	Output string `json:"output,omitempty"`
	Err    error  `json:"-"`
}

type BatchOptions struct {
	// Concurrency bounds the number of files processed at once. Zero uses
	// GOMAXPROCS; the bundler needs 1.
	Concurrency int
	Logger      *log.Logger
}

// Batch runs fn over units and returns one Result per unit, in input order.
// A failing file never stops its siblings; cancelling ctx marks the files
// not yet started with the context error.
func Batch(ctx context.Context, units []extractor.SourceUnit, opts BatchOptions, fn Func) []Result {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	results := make([]Result, len(units))
	var g errgroup.Group
	g.SetLimit(limit)

	for i, unit := range units {
		i, unit := i, unit // per-iteration copies (pre-Go 1.22 loop semantics)
		results[i].Source = unit.Path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			out, err := fn(ctx, unit)
			if err != nil {
				logger.Error("file failed", "src", unit.Path, "err", err)
				results[i].Err = err
				return nil
			}
			results[i].Output = out
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts the results carrying an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// WriteOutputs writes every successful result below dest, mirroring the
// source layout relative to root. name maps a source base name to the output
// base name.
func WriteOutputs(results []Result, root, dest string, name func(string) string) ([]string, error) {
	var written []string
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		rel, err := filepath.Rel(root, r.Source)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(r.Source)
		}
		target := filepath.Join(dest, filepath.Dir(rel), name(filepath.Base(rel)))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, err
		}
		if err := os.WriteFile(target, []byte(r.Output), 0644); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}
