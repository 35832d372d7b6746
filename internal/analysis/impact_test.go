package analysis

import (
	"testing"

	"cmdnice/internal/git"
	"cmdnice/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func module(id string, deps ...string) *graph.Module {
	m := &graph.Module{ID: id, Path: "/proj/" + id + ".js", Dependencies: deps}
	for _, d := range deps {
		m.Relations = append(m.Relations, graph.Relation{Target: d, Kind: graph.RelationRequires, Specifier: d})
	}
	return m
}

func ids(nodes []*graph.Node) []string {
	out := []string{}
	for _, n := range nodes {
		out = append(out, n.Module.ID)
	}
	return out
}

func TestAnalyzeImpact_TransitiveDependents(t *testing.T) {
	g := graph.NewGraph()
	g.AddModule(module("main", "a"))
	g.AddModule(module("a", "util"))
	g.AddModule(module("util"))
	g.AddModule(module("other"))
	g.LinkRelations()

	report, err := NewAnalyzer(g).AnalyzeImpact([]git.ChangedFile{
		{Path: "/proj/util.js"},
		{Path: "/proj/README.md"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"util"}, ids(report.DirectlyAffected))
	assert.Equal(t, []string{"a", "main"}, ids(report.IndirectlyAffected))
	assert.Equal(t, []string{"/proj/README.md"}, report.Untracked)
	assert.Equal(t, []string{"/proj/a.js", "/proj/main.js", "/proj/util.js"}, report.Rebuild())
}

func TestAnalyzeImpact_CycleTerminates(t *testing.T) {
	g := graph.NewGraph()
	g.AddModule(module("a", "b"))
	g.AddModule(module("b", "a"))
	g.LinkRelations()

	report, err := NewAnalyzer(g).AnalyzeImpact([]git.ChangedFile{{Path: "/proj/a.js"}, {Path: "/proj/a.js"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(report.DirectlyAffected))
	assert.Equal(t, []string{"b"}, ids(report.IndirectlyAffected))
}
