package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/entity"
)

// replaceBuilder swaps out a node's sources the first time it is prepared,
// exercising Builder.Replace.
type replaceBuilder struct {
	stubBuilder
	replacement []any
}

func (b *replaceBuilder) Replace(builder.NodeContext) ([]any, bool, error) {
	return b.replacement, true, nil
}

func TestBuilderReplaceRewritesSourcesBeforeResolution(t *testing.T) {
	b := &replaceBuilder{
		stubBuilder: stubBuilder{name: "gen", sig: aqlsig.Signature("v1")},
		replacement: []any{"replaced"},
	}
	n := New(b, "", "original")

	values, err := n.SourceValues()
	require.NoError(t, err)
	require.Len(t, values, 1)

	want, err := entity.NewSimple([]byte("replaced"), "", nil, nil)
	require.NoError(t, err)
	assert.True(t, want.Equal(values[0]))
}

// dependsBuilder injects an extra dependency entity, exercising
// Builder.Depends.
type dependsBuilder struct {
	stubBuilder
	extra entity.Entity
}

func (b *dependsBuilder) Depends(builder.NodeContext) ([]entity.Entity, bool, error) {
	return []entity.Entity{b.extra}, true, nil
}

func TestBuilderDependsInjectsExtraDepBeforeSignatureHashing(t *testing.T) {
	extra, err := entity.NewSimple([]byte("dep-data"), "extra-dep", nil, nil)
	require.NoError(t, err)
	b := &dependsBuilder{
		stubBuilder: stubBuilder{name: "compile", sig: aqlsig.Signature("v1")},
		extra:       extra,
	}
	n := New(b, "", "a.c")

	sig, err := n.Signature()
	require.NoError(t, err)
	assert.True(t, sig.Present())

	require.Contains(t, n.DepValues(), extra)

	// A sibling node with no Depends hook sees a different signature, since
	// the injected dep is folded into the hash.
	plain := New(&stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}, "", "a.c")
	plainSig, err := plain.Signature()
	require.NoError(t, err)
	assert.False(t, sig.Equal(plainSig))
}

// splitBuilder decomposes into pre-built sub-nodes, exercising Builder.Split.
type splitBuilder struct {
	stubBuilder
	subs []*Node
}

func (b *splitBuilder) Split(builder.NodeContext) ([]builder.Buildable, bool, error) {
	out := make([]builder.Buildable, len(b.subs))
	for i, s := range b.subs {
		out[i] = s
	}
	return out, true, nil
}

func TestBuilderSplitBuildsSubNodesAndAdoptsTheirTargets(t *testing.T) {
	subBuilder := &stubBuilder{name: "sub", sig: aqlsig.Signature("v1")}
	sub1 := New(subBuilder, "", "a")
	sub2 := New(subBuilder, "", "b")

	b := &splitBuilder{
		stubBuilder: stubBuilder{name: "splitter", sig: aqlsig.Signature("v1")},
		subs:        []*Node{sub1, sub2},
	}
	n := New(b, "")

	require.NoError(t, n.Build())
	targets, err := n.TargetValues()
	require.NoError(t, err)
	assert.Len(t, targets, 2, "one target adopted from each sub-node")

	sub1Targets, err := sub1.TargetValues()
	require.NoError(t, err)
	assert.Equal(t, sub1Targets[0], targets[0])
}
