package resolver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStage struct {
	name string
	fn   func(spec string) string
}

func (f fakeStage) Name() string               { return f.name }
func (f fakeStage) Rewrite(spec string) string { return f.fn(spec) }

func TestChain_Run(t *testing.T) {
	calls := 0
	s1 := fakeStage{name: "s1", fn: func(spec string) string {
		calls++
		return spec + "/one"
	}}
	s2 := fakeStage{name: "s2", fn: func(spec string) string {
		calls++
		return strings.ToUpper(spec)
	}}

	out, trace := NewChain(s1, s2).Run("x")
	assert.Equal(t, "X/ONE", out)
	assert.Equal(t, 2, calls, "each stage runs exactly once")
	assert.Equal(t, []StageResult{
		{Stage: "s1", Before: "x", After: "x/one"},
		{Stage: "s2", Before: "x/one", After: "X/ONE"},
	}, trace)
}

func TestChain_AliasStages(t *testing.T) {
	chain := NewChain(
		NewAliasStage(map[string]string{"jq": "jquery"}),
		NewPathAliasStage(map[string]string{"libs": "vendor", "jq": "nope"}),
	)

	out, trace := chain.Run("libs/jq")
	assert.Equal(t, "vendor/jq", out, "segment aliases never touch the leaf")
	assert.Len(t, trace, 2)
	assert.Equal(t, "alias", trace[0].Stage)
	assert.Equal(t, "libs/jq", trace[0].After)
	assert.Equal(t, "alias_paths", trace[1].Stage)

	out, _ = chain.Run("jq")
	assert.Equal(t, "jquery", out)

	out, _ = NewChain().Run("untouched")
	assert.Equal(t, "untouched", out)
}
