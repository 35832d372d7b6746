package graph

import "sort"

// Node represents a vertex in the dependency graph.
type Node struct {
	Module *Module
}

// Edge represents a directed relationship between two nodes.
type Edge struct {
	From string // requiring module ID
	To   string // required module ID
	Kind RelationKind
}

// Graph manages modules and their require relationships.
type Graph struct {
	Nodes      map[string]*Node
	Edges      []Edge
	Unresolved []UnresolvedRef

	// Path -> ID, for looking modules up by file.
	pathIndex map[string]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		Edges:     []Edge{},
		pathIndex: make(map[string]string),
	}
}

// AddModule adds a module as a node and indexes it by path.
func (g *Graph) AddModule(m *Module) {
	if m == nil {
		return
	}
	g.Nodes[m.ID] = &Node{Module: m}
	if m.Path != "" {
		g.pathIndex[m.Path] = m.ID
	}
}

// RebuildIndices restores the lookups that are not serialized.
func (g *Graph) RebuildIndices() {
	g.pathIndex = make(map[string]string, len(g.Nodes))
	for id, n := range g.Nodes {
		if n.Module != nil && n.Module.Path != "" {
			g.pathIndex[n.Module.Path] = id
		}
	}
}

// ModuleByPath returns the node for an absolute file path.
func (g *Graph) ModuleByPath(path string) (*Node, bool) {
	id, ok := g.pathIndex[path]
	if !ok {
		return nil, false
	}
	n, ok := g.Nodes[id]
	return n, ok
}

// LinkRelations turns every relation whose target is a known node into an
// edge. Targets outside the graph are recorded as external; unresolved
// references recorded for other reasons are kept.
func (g *Graph) LinkRelations() {
	g.Edges = []Edge{}
	kept := g.Unresolved[:0:0]
	for _, u := range g.Unresolved {
		if u.Reason != ReasonExternal {
			kept = append(kept, u)
		}
	}
	g.Unresolved = kept

	for _, sourceID := range g.SortedIDs() {
		node := g.Nodes[sourceID]
		for _, rel := range node.Module.Relations {
			if _, ok := g.Nodes[rel.Target]; ok {
				g.Edges = append(g.Edges, Edge{From: sourceID, To: rel.Target, Kind: rel.Kind})
				continue
			}
			g.Unresolved = append(g.Unresolved, UnresolvedRef{
				From:      sourceID,
				Specifier: rel.Specifier,
				Reason:    ReasonExternal,
			})
		}
	}
}

// SortedIDs returns node ids in lexical order.
func (g *Graph) SortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetDependents returns all nodes that require the given node.
func (g *Graph) GetDependents(id string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == id {
			if node, ok := g.Nodes[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}
