package analysis

import (
	"sort"

	"cmdnice/internal/git"
	"cmdnice/internal/graph"
)

// ImpactReport summarizes the modules affected by changes.
type ImpactReport struct {
	// DirectlyAffected are the modules declared in changed files.
	DirectlyAffected []*graph.Node
	// IndirectlyAffected transitively require a directly affected module.
	IndirectlyAffected []*graph.Node
	// Untracked are changed paths that declare no known module.
	Untracked []string
}

// Rebuild lists the files whose outputs must be regenerated, sorted.
func (r *ImpactReport) Rebuild() []string {
	var files []string
	for _, n := range r.DirectlyAffected {
		files = append(files, n.Module.Path)
	}
	for _, n := range r.IndirectlyAffected {
		files = append(files, n.Module.Path)
	}
	sort.Strings(files)
	return files
}

// Analyzer performs impact analysis on the module graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// AnalyzeImpact identifies which modules are affected by the given changes.
// A concatenated or transported module embeds its dependencies' ids, so
// every module requiring a changed one, at any depth, is affected too.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) (*ImpactReport, error) {
	report := &ImpactReport{
		DirectlyAffected:   []*graph.Node{},
		IndirectlyAffected: []*graph.Node{},
	}

	seen := make(map[string]bool)

	// 1. Find Direct Impacts
	for _, change := range changes {
		node, ok := a.g.ModuleByPath(change.Path)
		if !ok {
			report.Untracked = append(report.Untracked, change.Path)
			continue
		}
		if !seen[node.Module.ID] {
			seen[node.Module.ID] = true
			report.DirectlyAffected = append(report.DirectlyAffected, node)
		}
	}

	// 2. Find Indirect Impacts (requirers, breadth first)
	queue := append([]*graph.Node{}, report.DirectlyAffected...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range a.g.GetDependents(current.Module.ID) {
			if seen[dep.Module.ID] {
				continue
			}
			seen[dep.Module.ID] = true
			report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
			queue = append(queue, dep)
		}
	}

	return report, nil
}
