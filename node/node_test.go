package node

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/entity"
	"github.com/aqualid/aqlbuild/vfile"
)

// stubBuilder is a minimal builder.Builder used across node tests: it
// wraps any raw source verbatim into a SimpleEntity, and its Build hook
// is swappable per test.
type stubBuilder struct {
	builder.Base
	name    string
	sig     aqlsig.Signature
	buildFn func(node builder.NodeContext) error
}

func (b *stubBuilder) Name() string              { return b.name }
func (b *stubBuilder) Signature() aqlsig.Signature { return b.sig }

func (b *stubBuilder) MakeValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	if e, ok := raw.(entity.Entity); ok {
		return e, nil
	}
	s, _ := raw.(string)
	return entity.NewSimple([]byte(s), "", nil, tags)
}

func (b *stubBuilder) MakeFileValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	path, _ := raw.(string)
	return entity.NewFileChecksum(path, nil, tags)
}

func (b *stubBuilder) Build(n builder.NodeContext) error {
	if b.buildFn != nil {
		return b.buildFn(n)
	}
	return n.AddTargets([]any{"out"}, nil, nil, nil)
}

func openTestVFile(t *testing.T) *vfile.VFile {
	t.Helper()
	vf, err := vfile.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { vf.Close() })
	return vf
}

func TestNodeNameStableAcrossCalls(t *testing.T) {
	n := New(&stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}, "", "a.c")
	name1, err := n.Name()
	require.NoError(t, err)
	name2, err := n.Name()
	require.NoError(t, err)
	assert.Equal(t, name1, name2)
}

func TestNodeNameDependsOnSources(t *testing.T) {
	b := &stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}
	n1 := New(b, "", "a.c")
	n2 := New(b, "", "b.c")
	name1, err := n1.Name()
	require.NoError(t, err)
	name2, err := n2.Name()
	require.NoError(t, err)
	assert.NotEqual(t, name1, name2)
}

func TestNodeSignatureAbsentWhenDepSignatureAbsent(t *testing.T) {
	b := &stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}
	n := New(b, "", "a.c")
	depEntity, _ := entity.NewSimple(nil, "pending", nil, nil) // absent signature
	require.NoError(t, n.Depends(depEntity))

	sig, err := n.Signature()
	require.NoError(t, err)
	assert.False(t, sig.Present())
}

func TestNodeSignaturePresentWithActualDeps(t *testing.T) {
	b := &stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}
	n := New(b, "", "a.c")
	depEntity, err := entity.NewSimple([]byte("dep-data"), "dep", nil, nil)
	require.NoError(t, err)
	require.NoError(t, n.Depends(depEntity))

	sig, err := n.Signature()
	require.NoError(t, err)
	assert.True(t, sig.Present())
}

func TestNodeBuildRequiresAddTargets(t *testing.T) {
	b := &stubBuilder{
		name: "noop", sig: aqlsig.Signature("v1"),
		buildFn: func(builder.NodeContext) error { return nil },
	}
	n := New(b, "")
	err := n.Build()
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestNodeBuildThenSaveThenIsActual(t *testing.T) {
	vf := openTestVFile(t)
	b := &stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}
	n := New(b, "", "a.c")

	require.NoError(t, n.Build())
	targets, err := n.TargetValues()
	require.NoError(t, err)
	require.Len(t, targets, 1)

	require.NoError(t, n.Save(vf))

	fresh := New(b, "", "a.c")
	actual, err := fresh.IsActual(vf, nil, nil)
	require.NoError(t, err)
	assert.True(t, actual)

	freshTargets, err := fresh.TargetValues()
	require.NoError(t, err)
	assert.Equal(t, targets, freshTargets)
}

func TestNodeIsActualFalseWhenNeverBuilt(t *testing.T) {
	vf := openTestVFile(t)
	b := &stubBuilder{name: "compile", sig: aqlsig.Signature("v1")}
	n := New(b, "", "a.c")
	actual, err := n.IsActual(vf, nil, nil)
	require.NoError(t, err)
	assert.False(t, actual)
}

func TestNodeSaveRejectsUnactualTarget(t *testing.T) {
	vf := openTestVFile(t)
	stale, _ := entity.NewFileChecksum("/does/not/exist-ever", aqlsig.Signature("stale"), nil)
	b := &stubBuilder{
		name: "broken", sig: aqlsig.Signature("v1"),
		buildFn: func(n builder.NodeContext) error {
			return n.AddTargets([]any{stale}, nil, nil, nil)
		},
	}
	n := New(b, "", "a.c")
	require.NoError(t, n.Build())
	err := n.Save(vf)
	assert.ErrorIs(t, err, ErrUnactualValue)
}

func TestNodeDependsRejectsInvalidKind(t *testing.T) {
	b := &stubBuilder{name: "x", sig: aqlsig.Signature("v1")}
	n := New(b, "")
	err := n.Depends(42)
	assert.ErrorIs(t, err, ErrInvalidDependency)
}

func TestNodeClearRemovesTargetsAndVFileRecord(t *testing.T) {
	dir := t.TempDir()
	vf := openTestVFile(t)

	targetPath := dir + "/out.bin"
	b := &stubBuilder{
		name: "emit", sig: aqlsig.Signature("v1"),
		buildFn: func(n builder.NodeContext) error {
			require.NoError(t, os.WriteFile(targetPath, []byte("data"), 0o644))
			target, err := entity.NewFileChecksum(targetPath, nil, nil)
			if err != nil {
				return err
			}
			return n.AddTargets([]any{target}, nil, nil, nil)
		},
	}
	n := New(b, "", "a.c")
	require.NoError(t, n.Build())
	require.NoError(t, n.Save(vf))

	clearer := New(b, "", "a.c")
	require.NoError(t, clearer.Clear(vf))

	_, err := os.Stat(targetPath)
	assert.True(t, os.IsNotExist(err), "clear must remove the backing target file")

	name, err := clearer.Name()
	require.NoError(t, err)
	_, ok, err := vf.FindNodeValue(name)
	require.NoError(t, err)
	assert.False(t, ok, "clear must remove the node's VFile record")
}

func TestNodeAtFiltersByTag(t *testing.T) {
	b := &stubBuilder{
		name: "gen", sig: aqlsig.Signature("v1"),
		buildFn: func(n builder.NodeContext) error {
			if err := n.AddTargets([]any{"obj"}, nil, nil, []string{"object"}); err != nil {
				return err
			}
			return n.AddTargets([]any{"listing"}, nil, nil, []string{"listing"})
		},
	}
	producer := New(b, "")
	require.NoError(t, producer.Build())

	consumer := New(&stubBuilder{name: "link", sig: aqlsig.Signature("v1")}, "", producer.At("object"))
	values, err := consumer.SourceValues()
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.True(t, values[0].HasAnyTag(map[string]struct{}{"object": {}}))
}
