package resolver

import "strings"

// Stage rewrites a raw specifier before it is looked up on disk.
type Stage interface {
	Name() string
	Rewrite(spec string) string
}

type StageResult struct {
	Stage  string
	Before string
	After  string
}

// Chain applies its stages in order. Each stage sees the output of the
// previous one exactly once.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Run(spec string) (string, []StageResult) {
	out := make([]StageResult, 0, len(c.stages))
	for _, s := range c.stages {
		before := spec
		spec = s.Rewrite(spec)
		out = append(out, StageResult{Stage: s.Name(), Before: before, After: spec})
	}
	return spec, out
}

// AliasStage replaces a whole specifier by its alias.
type AliasStage struct {
	table map[string]string
}

func NewAliasStage(table map[string]string) *AliasStage {
	return &AliasStage{table: table}
}

func (s *AliasStage) Name() string { return "alias" }

func (s *AliasStage) Rewrite(spec string) string {
	if v, ok := s.table[spec]; ok {
		return v
	}
	return spec
}

// PathAliasStage substitutes every segment but the last.
type PathAliasStage struct {
	table map[string]string
}

func NewPathAliasStage(table map[string]string) *PathAliasStage {
	return &PathAliasStage{table: table}
}

func (s *PathAliasStage) Name() string { return "alias_paths" }

func (s *PathAliasStage) Rewrite(spec string) string {
	segments := strings.Split(spec, "/")
	if len(segments) <= 1 || len(s.table) == 0 {
		return spec
	}
	for i := 0; i < len(segments)-1; i++ {
		if v, ok := s.table[segments[i]]; ok {
			segments[i] = v
		}
	}
	return strings.Join(segments, "/")
}
