package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"cmdnice/internal/crawler"
	"cmdnice/internal/diag"
	"cmdnice/internal/extractor"
	"cmdnice/internal/graph"
	"cmdnice/internal/resolver"

	"github.com/charmbracelet/log"
)

// Indexer builds the project module graph.
type Indexer struct {
	crawler  *crawler.Crawler
	resolver *resolver.Resolver
	logger   *log.Logger
}

// NewIndexer creates a new indexer. A nil logger discards output.
func NewIndexer(c *crawler.Crawler, r *resolver.Resolver, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Indexer{crawler: c, resolver: r, logger: logger}
}

// BuildGraph scans root and records one node per module declaration.
// Plain scripts are skipped; files that fail to parse are logged and skipped.
func (i *Indexer) BuildGraph(ctx context.Context, root string) (*graph.Graph, error) {
	g := graph.NewGraph()

	err := i.crawler.ScanProject(root, func(unit extractor.SourceUnit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return i.AddUnit(ctx, g, unit)
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// Resolve relationships after all modules are loaded
	g.LinkRelations()
	return g, nil
}

// AddUnit parses unit and adds its module to g.
func (i *Indexer) AddUnit(ctx context.Context, g *graph.Graph, unit extractor.SourceUnit) error {
	_, meta, err := extractor.LoadModule(ctx, unit)
	if err != nil {
		if errors.Is(err, diag.ErrNotModule) {
			i.logger.Debug("skipped plain script", "file", unit.Path)
			return nil
		}
		i.logger.Warn("skipped unparsable file", "file", unit.Path, "err", err)
		g.Unresolved = append(g.Unresolved, graph.UnresolvedRef{
			From:   i.resolver.CanonicalID(unit.Path),
			Reason: graph.ReasonParseFailed,
		})
		return nil
	}

	m, unresolved := graph.FromModuleMeta(i.resolver, unit, meta)
	g.AddModule(m)
	g.Unresolved = append(g.Unresolved, unresolved...)
	return nil
}

// SaveGraph persists the graph to a JSON file.
func (i *Indexer) SaveGraph(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// LoadGraph loads a graph from a JSON file.
func (i *Indexer) LoadGraph(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	g := graph.NewGraph()
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	// Rebuild internal indices that aren't serialized
	g.RebuildIndices()

	return g, nil
}
