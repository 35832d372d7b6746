package graph

import (
	"testing"

	"cmdnice/internal/extractor"
	"cmdnice/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_LinkRelations(t *testing.T) {
	g := NewGraph()

	modA := &Module{
		ID:   "app/a",
		Path: "/proj/app/a.js",
		Relations: []Relation{
			{Target: "app/b", Kind: RelationRequires, Specifier: "./b"},
			{Target: "jquery", Kind: RelationRequires, Specifier: "jquery"},
		},
	}
	modB := &Module{ID: "app/b", Path: "/proj/app/b.js"}

	g.AddModule(modA)
	g.AddModule(modB)
	g.Unresolved = append(g.Unresolved, UnresolvedRef{From: "app/a", Specifier: "./gone", Reason: ReasonMissingFile})

	g.LinkRelations()

	t.Run("Local edge", func(t *testing.T) {
		assert.Equal(t, []Edge{{From: "app/a", To: "app/b", Kind: RelationRequires}}, g.Edges)
	})

	t.Run("Dependent lookup", func(t *testing.T) {
		dependents := g.GetDependents("app/b")
		require.Len(t, dependents, 1)
		assert.Equal(t, "app/a", dependents[0].Module.ID)
	})

	t.Run("External targets are recorded", func(t *testing.T) {
		counts := g.UnresolvedReasonCounts()
		assert.Equal(t, 1, counts[ReasonExternal])
		assert.Equal(t, 1, counts[ReasonMissingFile])

		g.LinkRelations()
		assert.Equal(t, counts, g.UnresolvedReasonCounts(), "relinking must not duplicate refs")
	})

	t.Run("Lookup by path", func(t *testing.T) {
		n, ok := g.ModuleByPath("/proj/app/b.js")
		require.True(t, ok)
		assert.Equal(t, "app/b", n.Module.ID)
	})
}

func TestFromModuleMeta(t *testing.T) {
	fsys := resolver.NewMockFS(map[string]string{
		"/proj/app/a.js":    "",
		"/proj/app/b.js":    "",
		"/proj/lib/util.js": "",
	})
	r := resolver.New(resolver.Options{Root: "/proj", Paths: []string{"/proj/lib"}, FS: fsys})

	unit := extractor.SourceUnit{Path: "/proj/app/a.js", Content: "x"}
	meta := &extractor.ModuleMeta{ID: "a", Dependencies: []string{"./b", "util", "./b.js", "./missing", "jquery"}}

	m, unresolved := FromModuleMeta(r, unit, meta)
	require.NotNil(t, m)
	assert.Equal(t, "app/a", m.ID)
	assert.Equal(t, "a", m.DeclaredID)
	assert.Equal(t, unit.ContentHash(), m.ContentHash)

	var targets []string
	for _, rel := range m.Relations {
		targets = append(targets, rel.Target)
	}
	assert.Equal(t, []string{"app/b", "lib/util", "jquery"}, targets)
	assert.Equal(t, "search_root", m.Relations[1].Resolver)

	require.Len(t, unresolved, 1)
	assert.Equal(t, "./missing", unresolved[0].Specifier)
}
