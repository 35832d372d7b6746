package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"cmdnice/internal/analysis"
	"cmdnice/internal/git"
	"cmdnice/internal/graph"
	"cmdnice/internal/output"
	"cmdnice/internal/pipeline"
	"cmdnice/internal/resolver"
	"cmdnice/internal/storage"

	"github.com/spf13/cobra"
)

var (
	impactSince string
	impactGraph string
	scanJSON    string
	resolveFrom string
)

func init() {
	impactCmd.Flags().StringVar(&impactSince, "since", "HEAD", "Git ref changes are detected against")
	impactCmd.Flags().StringVar(&impactGraph, "graph", "", "Read the graph from a JSON export instead of the database")
	scanCmd.Flags().StringVar(&scanJSON, "json", "", "Also export the graph as JSON to this file")
	resolveCmd.Flags().StringVar(&resolveFrom, "from", "", "Directory the specifier is written in (default the project root)")
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Print the transitive dependency closure of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if real, err := filepath.EvalSymlinks(file); err == nil {
			file = real
		}

		deps, err := a.walker().FileClosure(cmd.Context(), file)
		if err != nil {
			return err
		}
		a.out.PrintList(deps)
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Index the project modules and store a graph snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		root := a.cfg.Root
		if len(args) > 0 {
			if root, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}

		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		idx := a.indexer()
		g, err := idx.BuildGraph(cmd.Context(), root)
		if err != nil {
			return err
		}

		snap, err := store.SaveGraph(cmd.Context(), root, g)
		if err != nil {
			return fmt.Errorf("failed to save graph: %w", err)
		}
		if scanJSON != "" {
			if err := idx.SaveGraph(g, scanJSON); err != nil {
				return err
			}
			a.logger.Info("graph exported", "file", scanJSON)
		}

		a.out.PrintHeading("Snapshot " + snap.ID)
		a.out.PrintTable(summaryTable(snap, g))
		return nil
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "List modules affected by changes since a git ref",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		g, err := a.loadGraph(cmd.Context(), impactGraph)
		if err != nil {
			return err
		}

		changes, err := git.GetChangedFiles(cmd.Context(), a.cfg.Root, impactSince)
		if err != nil {
			return err
		}
		report, err := analysis.NewAnalyzer(g).AnalyzeImpact(changes)
		if err != nil {
			return err
		}

		a.out.PrintHeading(fmt.Sprintf("Impact since %s", impactSince))
		a.out.PrintTable(impactTable(report))
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <specifier>",
	Short: "Show how a dependency specifier is rewritten and located",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		dir := a.cfg.Root
		if resolveFrom != "" {
			if dir, err = filepath.Abs(resolveFrom); err != nil {
				return err
			}
		}
		a.out.PrintTable(traceTable(a.resolver, args[0], dir))
		return nil
	},
}

// loadGraph reads the graph from a JSON export when file is set and from the
// database otherwise. An empty graph is ErrNoGraph.
func (a *app) loadGraph(ctx context.Context, file string) (*graph.Graph, error) {
	var (
		g   *graph.Graph
		err error
	)
	if file != "" {
		g, err = a.indexer().LoadGraph(file)
	} else {
		var store *storage.SQLiteStore
		store, err = storage.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		g, err = store.LoadGraph(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(g.Nodes) == 0 {
		return nil, pipeline.ErrNoGraph
	}
	return g, nil
}

// traceTable lists every alias stage the specifier passes through, then the
// lookup and the final id.
func traceTable(r *resolver.Resolver, spec, baseDir string) output.TableData {
	_, stages := r.Trace(spec)
	data := output.TableData{Headers: []string{"Step", "Input", "Output"}}
	for _, st := range stages {
		data.Rows = append(data.Rows, []string{st.Stage, st.Before, st.After})
	}

	res := r.Resolve(spec, baseDir)
	data.Rows = append(data.Rows, []string{"lookup." + res.Kind.String(), res.Rewritten, res.Path})
	if res.Resolved() {
		data.Rows = append(data.Rows, []string{"id", res.ID, r.TransformID(res.ID)})
	}
	return data
}

func summaryTable(snap *storage.Snapshot, g *graph.Graph) output.TableData {
	data := output.TableData{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"modules", strconv.Itoa(snap.Modules)},
			{"edges", strconv.Itoa(snap.Edges)},
		},
	}
	counts := g.UnresolvedReasonCounts()
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		data.Rows = append(data.Rows, []string{"unresolved." + reason, strconv.Itoa(counts[graph.UnresolvedReason(reason)])})
	}
	return data
}

func impactTable(report *analysis.ImpactReport) output.TableData {
	data := output.TableData{Headers: []string{"Module", "Path", "Impact"}}
	for _, n := range report.DirectlyAffected {
		data.Rows = append(data.Rows, []string{n.Module.ID, n.Module.Path, "direct"})
	}
	for _, n := range report.IndirectlyAffected {
		data.Rows = append(data.Rows, []string{n.Module.ID, n.Module.Path, "indirect"})
	}
	for _, p := range report.Untracked {
		data.Rows = append(data.Rows, []string{"", p, "untracked"})
	}
	return data
}
