package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"cmdnice/internal/analysis"
	"cmdnice/internal/extractor"
	"cmdnice/internal/git"
	"cmdnice/internal/graph"
	"cmdnice/internal/index"
	"cmdnice/internal/storage"

	"github.com/charmbracelet/log"
)

// IncrementalSync decides which files need to be transported again after a
// change, keeping the stored module graph current along the way.
type IncrementalSync struct {
	Store   storage.Store
	Indexer *index.Indexer
	Root    string
	// Since is the git ref changes are detected against. Empty means a full
	// rebuild.
	Since  string
	Logger *log.Logger

	changedFiles func(ctx context.Context, dir, ref string) ([]git.ChangedFile, error)
}

// SyncPlan is the outcome of Run.
type SyncPlan struct {
	Changes    []git.ChangedFile
	FullResync bool
	Graph      *graph.Graph
	Snapshot   *storage.Snapshot
	Report     *analysis.ImpactReport
	// Files lists the module files to rebuild, sorted.
	Files []string
}

type updatePlan struct {
	Changes    []git.ChangedFile
	FullResync bool
}

type graphUpdateResult struct {
	Graph *graph.Graph
	// Orphaned holds the files affected in the graph as it was stored.
	Orphaned []string
}

func NewIncrementalSync(store storage.Store, idx *index.Indexer, root, since string, logger *log.Logger) *IncrementalSync {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &IncrementalSync{
		Store:        store,
		Indexer:      idx,
		Root:         root,
		Since:        since,
		Logger:       logger,
		changedFiles: git.GetChangedFiles,
	}
}

func (s *IncrementalSync) Run(ctx context.Context) (*SyncPlan, error) {
	plan, err := s.detectChangesStage(ctx)
	if err != nil {
		return nil, err
	}

	out := &SyncPlan{Changes: plan.Changes, FullResync: plan.FullResync}
	if len(plan.Changes) == 0 && !plan.FullResync {
		s.Logger.Info("no changes detected", "since", s.Since)
		out.Files = []string{}
		return out, nil
	}

	graphResult, err := s.graphUpdateStage(ctx, plan)
	if err != nil {
		return nil, err
	}
	out.Graph = graphResult.Graph

	out.Snapshot, err = s.Store.SaveGraph(ctx, s.Root, graphResult.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to save updated graph: %w", err)
	}

	if plan.FullResync {
		out.Files = collectGraphFiles(graphResult.Graph)
		return out, nil
	}

	out.Report, err = s.impactAnalysisStage(graphResult.Graph, plan.Changes)
	if err != nil {
		return nil, err
	}
	out.Files = mergeFiles(out.Report.Rebuild(), graphResult.Orphaned)
	return out, nil
}

func (s *IncrementalSync) detectChangesStage(ctx context.Context) (*updatePlan, error) {
	if s.Since == "" {
		return &updatePlan{FullResync: true}, nil
	}

	changes, err := s.changedFiles(ctx, s.Root, s.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}
	if len(changes) > 0 {
		s.Logger.Info("detected changed files", "count", len(changes), "since", s.Since)
	}
	return &updatePlan{Changes: changes}, nil
}

func (s *IncrementalSync) graphUpdateStage(ctx context.Context, plan *updatePlan) (*graphUpdateResult, error) {
	if !plan.FullResync {
		g, err := s.Store.LoadGraph(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph: %w", err)
		}
		if len(g.Nodes) > 0 {
			return s.patchGraph(ctx, g, plan.Changes)
		}
		s.Logger.Info("no stored graph, rebuilding")
	}

	start := time.Now()
	g, err := s.Indexer.BuildGraph(ctx, s.Root)
	if err != nil {
		return nil, fmt.Errorf("full graph build failed: %w", err)
	}
	s.Logger.Info("graph rebuilt", "modules", len(g.Nodes), "edges", len(g.Edges),
		"unresolved", len(g.Unresolved), "took", time.Since(start))
	return &graphUpdateResult{Graph: g}, nil
}

// patchGraph replaces the modules of changed files in a stored graph.
func (s *IncrementalSync) patchGraph(ctx context.Context, g *graph.Graph, changes []git.ChangedFile) (*graphUpdateResult, error) {
	// Requirers are taken from the graph before the change so a deleted
	// module still reaches them.
	before, err := analysis.NewAnalyzer(g).AnalyzeImpact(changes)
	if err != nil {
		return nil, err
	}
	result := &graphUpdateResult{Graph: g, Orphaned: before.Rebuild()}

	removed := make(map[string]bool)
	for _, n := range before.DirectlyAffected {
		removed[n.Module.ID] = true
		delete(g.Nodes, n.Module.ID)
	}
	g.Unresolved = dropRefsFrom(g.Unresolved, removed)
	g.RebuildIndices()

	updated := 0
	for _, change := range changes {
		if change.Deleted {
			continue
		}
		if _, err := os.Stat(change.Path); err != nil {
			continue
		}
		unit, err := extractor.ReadSourceUnit(change.Path)
		if err != nil {
			s.Logger.Warn("skipped unreadable file", "file", change.Path, "err", err)
			continue
		}
		if err := s.Indexer.AddUnit(ctx, g, unit); err != nil {
			return nil, err
		}
		updated++
	}

	g.LinkRelations()
	result.Orphaned = existing(result.Orphaned, g)
	s.Logger.Info("graph updated", "removed", len(removed), "updated", updated,
		"edges", len(g.Edges), "unresolved", len(g.Unresolved))
	return result, nil
}

func (s *IncrementalSync) impactAnalysisStage(g *graph.Graph, changes []git.ChangedFile) (*analysis.ImpactReport, error) {
	report, err := analysis.NewAnalyzer(g).AnalyzeImpact(changes)
	if err != nil {
		return nil, fmt.Errorf("impact analysis failed: %w", err)
	}
	s.Logger.Info("impact analyzed",
		"direct", len(report.DirectlyAffected),
		"indirect", len(report.IndirectlyAffected))
	return report, nil
}

// ErrNoGraph is returned when a stored graph is required but none exists.
var ErrNoGraph = errors.New("no stored module graph; run scan first")

func dropRefsFrom(refs []graph.UnresolvedRef, removed map[string]bool) []graph.UnresolvedRef {
	kept := refs[:0:0]
	for _, ref := range refs {
		if !removed[ref.From] {
			kept = append(kept, ref)
		}
	}
	return kept
}

// existing keeps the files that still declare a module in g.
func existing(files []string, g *graph.Graph) []string {
	var out []string
	for _, f := range files {
		if _, ok := g.ModuleByPath(f); ok {
			out = append(out, f)
		}
	}
	return out
}

func mergeFiles(lists ...[]string) []string {
	seen := make(map[string]bool)
	files := []string{}
	for _, list := range lists {
		for _, f := range list {
			if f != "" && !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

func collectGraphFiles(g *graph.Graph) []string {
	var files []string
	for _, node := range g.Nodes {
		files = append(files, node.Module.Path)
	}
	return mergeFiles(files)
}
