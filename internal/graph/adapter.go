package graph

import (
	"path/filepath"

	"cmdnice/internal/extractor"
	"cmdnice/internal/resolver"
)

// FromModuleMeta converts extractor output into a graph Module. Each declared
// dependency is resolved against the file's directory; unresolved relative
// specifiers are returned separately.
func FromModuleMeta(r *resolver.Resolver, unit extractor.SourceUnit, meta *extractor.ModuleMeta) (*Module, []UnresolvedRef) {
	if meta == nil {
		return nil, nil
	}

	m := &Module{
		ID:           r.CanonicalID(unit.Path),
		DeclaredID:   meta.ID,
		Path:         unit.Path,
		Dependencies: append([]string{}, meta.Dependencies...),
		ContentHash:  unit.ContentHash(),
	}

	var unresolved []UnresolvedRef
	dir := filepath.Dir(unit.Path)
	seen := make(map[string]bool, len(meta.Dependencies))
	for _, spec := range meta.Dependencies {
		res := r.Resolve(spec, dir)
		if !res.Resolved() {
			unresolved = append(unresolved, UnresolvedRef{From: m.ID, Specifier: spec, Reason: ReasonMissingFile})
			continue
		}
		target := res.ID
		if res.Path != "" {
			// Nodes are keyed by their root-relative id.
			target = r.CanonicalID(res.Path)
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		m.Relations = append(m.Relations, Relation{
			Target:    target,
			Kind:      RelationRequires,
			Specifier: spec,
			Resolver:  res.Kind.String(),
		})
	}
	return m, unresolved
}
