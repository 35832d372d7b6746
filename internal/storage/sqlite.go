package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cmdnice/internal/graph"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS modules (
			id TEXT PRIMARY KEY,
			declared_id TEXT,
			path TEXT,
			dependencies JSON,
			content_hash TEXT,
			relations JSON
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			from_id TEXT,
			to_id TEXT,
			kind TEXT,
			PRIMARY KEY (from_id, to_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS unresolved (
			from_id TEXT,
			specifier TEXT,
			reason TEXT,
			PRIMARY KEY (from_id, specifier, reason)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			root TEXT,
			modules INTEGER,
			edges INTEGER,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_modules_path ON modules(path);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const upsertModule = `
	INSERT INTO modules (id, declared_id, path, dependencies, content_hash, relations)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		declared_id=excluded.declared_id,
		path=excluded.path,
		dependencies=excluded.dependencies,
		content_hash=excluded.content_hash,
		relations=excluded.relations
`

const selectModule = "SELECT id, declared_id, path, dependencies, content_hash, relations FROM modules"

func moduleArgs(m *graph.Module) ([]any, error) {
	deps, err := json.Marshal(m.Dependencies)
	if err != nil {
		return nil, err
	}
	rels, err := json.Marshal(m.Relations)
	if err != nil {
		return nil, err
	}
	return []any{m.ID, m.DeclaredID, m.Path, deps, m.ContentHash, rels}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModule(row scanner) (*graph.Module, error) {
	var m graph.Module
	var deps, rels []byte
	if err := row.Scan(&m.ID, &m.DeclaredID, &m.Path, &deps, &m.ContentHash, &rels); err != nil {
		return nil, err
	}
	if len(deps) > 0 {
		_ = json.Unmarshal(deps, &m.Dependencies)
	}
	if len(rels) > 0 {
		_ = json.Unmarshal(rels, &m.Relations)
	}
	return &m, nil
}

// --- ModuleGraphStore Implementation ---

func (s *SQLiteStore) SaveModule(ctx context.Context, m *graph.Module) error {
	args, err := moduleArgs(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertModule, args...)
	return err
}

func (s *SQLiteStore) SaveGraph(ctx context.Context, root string, g *graph.Graph) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// A snapshot replaces everything stored before.
	for _, table := range []string{"modules", "edges", "unresolved"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, err
		}
	}

	// 1. Save Modules
	stmt, err := tx.PrepareContext(ctx, upsertModule)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, id := range g.SortedIDs() {
		args, err := moduleArgs(g.Nodes[id].Module)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, err
		}
	}

	// 2. Save Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (from_id, to_id, kind) VALUES (?, ?, ?)
		ON CONFLICT(from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return nil, err
	}
	defer edgeStmt.Close()

	for _, edge := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, edge.From, edge.To, string(edge.Kind)); err != nil {
			return nil, err
		}
	}

	// 3. Save unresolved references
	refStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unresolved (from_id, specifier, reason) VALUES (?, ?, ?)
		ON CONFLICT(from_id, specifier, reason) DO NOTHING
	`)
	if err != nil {
		return nil, err
	}
	defer refStmt.Close()

	for _, ref := range g.Unresolved {
		if _, err := refStmt.ExecContext(ctx, ref.From, ref.Specifier, string(ref.Reason)); err != nil {
			return nil, err
		}
	}

	// 4. Record the snapshot
	snap := &Snapshot{
		ID:        uuid.New().String(),
		Root:      root,
		Modules:   len(g.Nodes),
		Edges:     len(g.Edges),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (id, root, modules, edges, created_at) VALUES (?, ?, ?, ?, ?)",
		snap.ID, snap.Root, snap.Modules, snap.Edges, snap.CreatedAt.Format(timeLayout),
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	g := graph.NewGraph()

	// 1. Load Modules
	rows, err := s.db.QueryContext(ctx, selectModule)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		g.AddModule(m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, kind FROM edges ORDER BY from_id, to_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge graph.Edge
		var kind string
		if err := edgeRows.Scan(&edge.From, &edge.To, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edge.Kind = graph.RelationKind(kind)
		g.Edges = append(g.Edges, edge)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	// 3. Load unresolved references
	refRows, err := s.db.QueryContext(ctx, "SELECT from_id, specifier, reason FROM unresolved ORDER BY from_id, specifier")
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved: %w", err)
	}
	defer refRows.Close()

	for refRows.Next() {
		var ref graph.UnresolvedRef
		var reason string
		if err := refRows.Scan(&ref.From, &ref.Specifier, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved: %w", err)
		}
		ref.Reason = graph.UnresolvedReason(reason)
		g.Unresolved = append(g.Unresolved, ref)
	}
	return g, refRows.Err()
}

func (s *SQLiteStore) GetModule(ctx context.Context, id string) (*graph.Module, error) {
	return scanModule(s.db.QueryRowContext(ctx, selectModule+" WHERE id = ?", id))
}

func (s *SQLiteStore) FindModuleByFile(ctx context.Context, path string) (*graph.Module, error) {
	return scanModule(s.db.QueryRowContext(ctx, selectModule+" WHERE path = ?", path))
}

func (s *SQLiteStore) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, root, modules, edges, created_at FROM snapshots ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var created string
		if err := rows.Scan(&snap.ID, &snap.Root, &snap.Modules, &snap.Edges, &created); err != nil {
			return nil, err
		}
		snap.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, snap)
	}
	return out, rows.Err()
}
