package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cmdnice/internal/bundler"
	"cmdnice/internal/crawler"
	"cmdnice/internal/cssimport"
	"cmdnice/internal/debug"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/output"
	"cmdnice/internal/pipeline"
	"cmdnice/internal/storage"
	"cmdnice/internal/transport"

	"github.com/spf13/cobra"
)

var (
	outDir     string
	sinceRef   string
	concatSep  string
	postfixArg string
)

func init() {
	for _, cmd := range []*cobra.Command{transportCmd, concatCmd, debugCmd} {
		cmd.Flags().StringVar(&outDir, "out", "", "Write outputs below this directory instead of stdout")
	}
	transportCmd.Flags().StringVar(&sinceRef, "since", "", "Only transport modules affected by changes since this git ref")
	concatCmd.Flags().StringVar(&concatSep, "separator", "", "Separator appended to every concatenated module")
	debugCmd.Flags().StringVar(&postfixArg, "postfix", "", "Postfix inserted into debug module names")
}

var transportCmd = &cobra.Command{
	Use:   "transport [files or dirs...]",
	Short: "Name modules, declare their dependency closure and canonicalize requires",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		registry := transport.DefaultRegistry(transport.RegistryOptions{
			Walker: a.walker(),
			Cache:  a.cache,
			Inliner: cssimport.New(cssimport.Options{
				Paths:  a.cfg.Style.Paths,
				Logger: a.component("style"),
			}),
			Beautify: a.cfg.Beautify,
			Logger:   a.component("transport"),
		})

		var units []extractor.SourceUnit
		if sinceRef != "" {
			units, err = a.affectedUnits(ctx)
		} else {
			units, err = collectUnits(a.cfg.Root, args, registry.Extensions()...)
		}
		if err != nil {
			return err
		}
		units = a.compilable(units, registry)

		results := pipeline.Batch(ctx, units, pipeline.BatchOptions{
			Concurrency: a.cfg.Batch.Concurrency,
			Logger:      a.component("batch"),
		}, registry.Compile)
		st := a.cache.Stats()
		a.component("cache").Debug("cache stats", "trees", st.Trees, "dependencies", st.Dependencies, "contents", st.Contents)

		return a.finish(results, func(base string) string {
			if strings.EqualFold(filepath.Ext(base), a.resolver.Extension()) {
				return base
			}
			return base + a.resolver.Extension()
		})
	},
}

var concatCmd = &cobra.Command{
	Use:   "concat [files or dirs...]",
	Short: "Concatenate modules with the modules they declare",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		sep := a.cfg.Concat.Separator
		if concatSep != "" {
			sep = concatSep
		}

		b := bundler.New(bundler.Options{
			Resolver:    a.resolver,
			Separator:   sep,
			UseCache:    a.cfg.ConcatCacheEnabled(),
			OnDuplicate: bundler.DuplicatePolicy(a.cfg.Concat.OnDuplicateID),
			Logger:      a.component("concat"),
		})

		units, err := collectUnits(a.cfg.Root, args, a.resolver.Extension())
		if err != nil {
			return err
		}

		// The content registry is order dependent.
		results := pipeline.Batch(cmd.Context(), units, pipeline.BatchOptions{
			Concurrency: 1,
			Logger:      a.component("batch"),
		}, b.Execute)

		return a.finish(results, func(base string) string { return base })
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug [files or dirs...]",
	Short: "Generate debug-named copies of modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		postfix := a.cfg.Debug.Postfix
		if postfixArg != "" {
			postfix = postfixArg
		}

		g := debug.New(debug.Options{
			Resolver: a.resolver,
			Postfix:  postfix,
			Beautify: a.cfg.Beautify,
			Logger:   a.component("debug"),
		})

		units, err := collectUnits(a.cfg.Root, args, a.resolver.Extension())
		if err != nil {
			return err
		}

		results := pipeline.Batch(cmd.Context(), units, pipeline.BatchOptions{
			Concurrency: a.cfg.Batch.Concurrency,
			Logger:      a.component("batch"),
		}, g.Execute)

		return a.finish(results, func(base string) string { return debug.Name(base, postfix) })
	},
}

// affectedUnits runs an incremental sync and reads the files it selects.
func (a *app) affectedUnits(ctx context.Context) ([]extractor.SourceUnit, error) {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	idx := a.indexer()
	plan, err := pipeline.NewIncrementalSync(store, idx, a.cfg.Root, sinceRef, a.component("sync")).Run(ctx)
	if err != nil {
		return nil, err
	}

	var units []extractor.SourceUnit
	for _, file := range plan.Files {
		unit, err := extractor.ReadSourceUnit(file)
		if err != nil {
			a.logger.Warn("skipped unreadable file", "file", file, "err", err)
			continue
		}
		units = append(units, unit)
	}
	return units, nil
}

// compilable drops files no compiler is registered for.
func (a *app) compilable(units []extractor.SourceUnit, registry *transport.Registry) []extractor.SourceUnit {
	kept := units[:0]
	for _, u := range units {
		if _, ok := registry.Lookup(u.Path); ok {
			kept = append(kept, u)
			continue
		}
		a.logger.Info("skipped file without compiler", "file", u.Path)
	}
	return kept
}

// collectUnits reads the named files and crawls the named directories.
// Without arguments the project root is crawled. A file named twice, directly
// or through a directory, is returned once.
func collectUnits(root string, args []string, extensions ...string) ([]extractor.SourceUnit, error) {
	if len(args) == 0 {
		args = []string{root}
	}
	c := crawler.NewCrawler(extensions...)

	var units []extractor.SourceUnit
	seen := make(map[string]bool)
	add := func(u extractor.SourceUnit) {
		if !seen[u.Path] {
			seen[u.Path] = true
			units = append(units, u)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := c.Collect(arg)
			if err != nil {
				return nil, err
			}
			for _, u := range found {
				add(u)
			}
			continue
		}
		unit, err := extractor.ReadSourceUnit(arg)
		if err != nil {
			return nil, err
		}
		add(unit)
	}
	return units, nil
}

// finish writes or prints the outputs and turns failures into an exit code.
// Files that are not modules are warnings and do not fail the run.
func (a *app) finish(results []pipeline.Result, name func(string) string) error {
	if outDir != "" {
		written, err := pipeline.WriteOutputs(results, a.cfg.Root, outDir, name)
		if err != nil {
			return err
		}
		a.logger.Info("outputs written", "count", len(written), "dir", outDir)
		a.out.PrintHeading("Results")
		a.out.PrintTable(resultTable(a.cfg.Root, results))
	} else {
		for _, r := range results {
			if r.Err == nil {
				fmt.Fprintln(a.out.Writer, r.Output)
			}
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		d := diag.As(r.Err)
		if d.Level == diag.LevelWarn {
			a.out.PrintWarning(d.Message)
			continue
		}
		a.out.PrintError(d.Error())
		failed++
	}
	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d files failed", failed, len(results))}
	}
	return nil
}

func resultTable(root string, results []pipeline.Result) output.TableData {
	data := output.TableData{Headers: []string{"Source", "Status", "Message"}}
	for _, r := range results {
		src := r.Source
		if rel, err := filepath.Rel(root, src); err == nil && !strings.HasPrefix(rel, "..") {
			src = filepath.ToSlash(rel)
		}
		status, message := "ok", ""
		if r.Err != nil {
			d := diag.As(r.Err)
			status, message = string(d.Level), d.Message
		}
		data.Rows = append(data.Rows, []string{src, status, message})
	}
	return data
}
