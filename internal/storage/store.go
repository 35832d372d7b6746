package storage

import (
	"context"
	"time"

	"cmdnice/internal/graph"
)

// Store persists module graph snapshots.
type Store interface {
	ModuleGraphStore
	Close() error
}

// ModuleGraphStore defines operations for persisting the module graph.
type ModuleGraphStore interface {
	// SaveModule upserts a single module.
	SaveModule(ctx context.Context, m *graph.Module) error

	// SaveGraph replaces the stored graph with g and records a snapshot.
	SaveGraph(ctx context.Context, root string, g *graph.Graph) (*Snapshot, error)

	// LoadGraph returns the stored graph with edges and unresolved refs.
	LoadGraph(ctx context.Context) (*graph.Graph, error)

	// GetModule retrieves a module by its ID.
	GetModule(ctx context.Context, id string) (*graph.Module, error)

	// FindModuleByFile retrieves the module declared in a file.
	FindModuleByFile(ctx context.Context, path string) (*graph.Module, error)

	// Snapshots lists recorded snapshots, newest first.
	Snapshots(ctx context.Context) ([]Snapshot, error)
}

// Snapshot records one SaveGraph call.
type Snapshot struct {
	ID        string    `json:"id"`
	Root      string    `json:"root"`
	Modules   int       `json:"modules"`
	Edges     int       `json:"edges"`
	CreatedAt time.Time `json:"created_at"`
}
