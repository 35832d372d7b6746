package graph

type RelationKind string

const (
	RelationRequires RelationKind = "requires"
)

type UnresolvedReason string

const (
	ReasonMissingFile UnresolvedReason = "missing_file"
	ReasonExternal    UnresolvedReason = "external"
	ReasonParseFailed UnresolvedReason = "parse_failed"
)

// Module is the graph-domain node payload.
// It is decoupled from extractor.ModuleMeta so it can be stored and reloaded
// without a syntax tree.
type Module struct {
	ID string `json:"id"`
	// DeclaredID is the id written in the source, empty when anonymous.
	DeclaredID   string     `json:"declared_id,omitempty"`
	Path         string     `json:"path"`
	Dependencies []string   `json:"dependencies"`
	ContentHash  string     `json:"content_hash"`
	Relations    []Relation `json:"relations,omitempty"`
}

type Relation struct {
	Target    string       `json:"target"`
	Kind      RelationKind `json:"kind"`
	Specifier string       `json:"specifier,omitempty"`
	// Resolver names how the target was found: relative, search_root or external.
	Resolver string `json:"resolver,omitempty"`
}

// UnresolvedRef is a dependency that could not be turned into an edge.
type UnresolvedRef struct {
	From      string           `json:"from"`
	Specifier string           `json:"specifier"`
	Reason    UnresolvedReason `json:"reason"`
}
