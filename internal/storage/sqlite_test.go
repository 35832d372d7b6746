package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"cmdnice/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModule(id string, deps ...string) *graph.Module {
	m := &graph.Module{
		ID:           id,
		Path:         "/proj/" + id + ".js",
		Dependencies: deps,
		ContentHash:  "hash-" + id,
	}
	for _, d := range deps {
		m.Relations = append(m.Relations, graph.Relation{Target: d, Kind: graph.RelationRequires, Specifier: d})
	}
	return m
}

func TestSQLiteStore_SaveGraph_SnapshotSync(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	// Initial snapshot: a, b and edge a->b
	g1 := graph.NewGraph()
	g1.AddModule(testModule("a", "b"))
	g1.AddModule(testModule("b"))
	g1.LinkRelations()
	snap1, err := store.SaveGraph(ctx, "/proj", g1)
	require.NoError(t, err)
	assert.Equal(t, 2, snap1.Modules)
	assert.Equal(t, 1, snap1.Edges)

	// New snapshot: remove a, add c requiring b and an external module.
	g2 := graph.NewGraph()
	g2.AddModule(testModule("b"))
	g2.AddModule(testModule("c", "b", "jquery"))
	g2.LinkRelations()
	snap2, err := store.SaveGraph(ctx, "/proj", g2)
	require.NoError(t, err)
	assert.NotEqual(t, snap1.ID, snap2.ID)

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, loaded.SortedIDs())
	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, graph.Edge{From: "c", To: "b", Kind: graph.RelationRequires}, loaded.Edges[0])
	require.Len(t, loaded.Unresolved, 1)
	assert.Equal(t, graph.ReasonExternal, loaded.Unresolved[0].Reason)

	c := loaded.Nodes["c"].Module
	assert.Equal(t, []string{"b", "jquery"}, c.Dependencies)
	assert.Len(t, c.Relations, 2)

	snaps, err := store.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, snap2.ID, snaps[0].ID)
}

func TestSQLiteStore_Lookups(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveModule(ctx, testModule("app/x", "app/y")))

	m, err := store.GetModule(ctx, "app/x")
	require.NoError(t, err)
	assert.Equal(t, "/proj/app/x.js", m.Path)

	m, err = store.FindModuleByFile(ctx, "/proj/app/x.js")
	require.NoError(t, err)
	assert.Equal(t, "app/x", m.ID)

	_, err = store.GetModule(ctx, "nope")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSQLiteStore_SaveGraph_EmptySnapshotClearsData(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	g := graph.NewGraph()
	g.AddModule(testModule("x"))
	_, err = store.SaveGraph(ctx, "/proj", g)
	require.NoError(t, err)

	_, err = store.SaveGraph(ctx, "/proj", graph.NewGraph())
	require.NoError(t, err)

	loaded, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes)
	assert.Empty(t, loaded.Edges)
}
