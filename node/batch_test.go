package node

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/entity"
)

// batchStubBuilder builds every changed source into a SimpleEntity named
// after the source's own name, so tests can assert on which sources were
// actually rebuilt.
type batchStubBuilder struct {
	builder.Base
	name       string
	sig        aqlsig.Signature
	buildCalls []string
}

func (b *batchStubBuilder) Name() string               { return b.name }
func (b *batchStubBuilder) Signature() aqlsig.Signature { return b.sig }

func (b *batchStubBuilder) MakeValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	if e, ok := raw.(entity.Entity); ok {
		return e, nil
	}
	s, _ := raw.(string)
	return entity.NewSimple([]byte(s), "", nil, tags)
}

func (b *batchStubBuilder) MakeFileValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	path, _ := raw.(string)
	return entity.NewFileChecksum(path, nil, tags)
}

func (b *batchStubBuilder) BuildBatch(n builder.BatchNodeContext) error {
	for _, src := range n.ChangedSourceValues() {
		b.buildCalls = append(b.buildCalls, src.Name())
		out, _ := entity.NewSimple([]byte(src.Name()+"-built"), "", nil, nil)
		if err := n.AddSourceTargets(src, []any{out}, nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// fileBatchStubBuilder is batchStubBuilder's filesystem-backed cousin: each
// source's target is a real file under dir, so Clear has something to
// actually remove.
type fileBatchStubBuilder struct {
	builder.Base
	name string
	sig  aqlsig.Signature
	dir  string
}

func (b *fileBatchStubBuilder) Name() string               { return b.name }
func (b *fileBatchStubBuilder) Signature() aqlsig.Signature { return b.sig }

func (b *fileBatchStubBuilder) MakeValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	if e, ok := raw.(entity.Entity); ok {
		return e, nil
	}
	s, _ := raw.(string)
	return entity.NewSimple([]byte(s), "", nil, tags)
}

func (b *fileBatchStubBuilder) MakeFileValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	path, _ := raw.(string)
	return entity.NewFileChecksum(path, nil, tags)
}

func (b *fileBatchStubBuilder) BuildBatch(n builder.BatchNodeContext) error {
	for _, src := range n.ChangedSourceValues() {
		path := b.dir + "/" + src.Name() + ".out"
		if err := os.WriteFile(path, []byte("built"), 0o644); err != nil {
			return err
		}
		target, err := entity.NewFileChecksum(path, nil, nil)
		if err != nil {
			return err
		}
		if err := n.AddSourceTargets(src, []any{target}, nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func sourceEntities(t *testing.T, names ...string) []any {
	t.Helper()
	out := make([]any, len(names))
	for i, name := range names {
		e, err := entity.NewSimple([]byte("v1-"+name), name, nil, nil)
		require.NoError(t, err)
		out[i] = e
	}
	return out
}

func TestBatchNodeFirstRunRebuildsEverySource(t *testing.T) {
	vf := openTestVFile(t)
	b := &batchStubBuilder{name: "compile-each", sig: aqlsig.Signature("v1")}
	bn := NewBatch(b, "", sourceEntities(t, "a.c", "b.c", "c.c")...)

	actual, err := bn.IsActual(vf, nil, nil)
	require.NoError(t, err)
	assert.False(t, actual)
	assert.Len(t, bn.ChangedSourceValues(), 3)

	require.NoError(t, bn.Build())
	assert.ElementsMatch(t, []string{"a.c", "b.c", "c.c"}, b.buildCalls)

	require.NoError(t, bn.Save(vf))
}

func TestBatchNodeSecondRunOnlyRebuildsChangedSource(t *testing.T) {
	vf := openTestVFile(t)
	b := &batchStubBuilder{name: "compile-each", sig: aqlsig.Signature("v1")}
	srcA, err := entity.NewSimple([]byte("v1-a"), "a.c", nil, nil)
	require.NoError(t, err)
	srcB, err := entity.NewSimple([]byte("v1-b"), "b.c", nil, nil)
	require.NoError(t, err)

	bn := NewBatch(b, "", srcA, srcB)
	_, err = bn.IsActual(vf, nil, nil)
	require.NoError(t, err)
	require.NoError(t, bn.Build())
	require.NoError(t, bn.Save(vf))

	// New batch node, same cwd/builder, but source "a.c" content changed.
	changedA, err := entity.NewSimple([]byte("v2-a"), "a.c", nil, nil)
	require.NoError(t, err)
	b2 := &batchStubBuilder{name: "compile-each", sig: aqlsig.Signature("v1")}
	bn2 := NewBatch(b2, "", changedA, srcB)

	actual, err := bn2.IsActual(vf, nil, nil)
	require.NoError(t, err)
	assert.False(t, actual, "one changed source keeps the batch stale overall")

	changed := bn2.ChangedSourceValues()
	require.Len(t, changed, 1)
	assert.Equal(t, "a.c", changed[0].Name())

	require.NoError(t, bn2.Build())
	assert.Equal(t, []string{"a.c"}, b2.buildCalls)

	targets, err := bn2.TargetValues()
	require.NoError(t, err)
	assert.Len(t, targets, 2) // a.c's fresh target plus b.c's adopted cached target
}

func TestBatchNodeClearRemovesTargetsAndVFileRecords(t *testing.T) {
	dir := t.TempDir()
	vf := openTestVFile(t)

	b := &fileBatchStubBuilder{name: "compile-each", sig: aqlsig.Signature("v1"), dir: dir}
	srcA, err := entity.NewSimple([]byte("v1-a"), "a.c", nil, nil)
	require.NoError(t, err)
	srcB, err := entity.NewSimple([]byte("v1-b"), "b.c", nil, nil)
	require.NoError(t, err)

	bn := NewBatch(b, "", srcA, srcB)
	_, err = bn.IsActual(vf, nil, nil)
	require.NoError(t, err)
	require.NoError(t, bn.Build())
	require.NoError(t, bn.Save(vf))

	clearer := NewBatch(b, "", srcA, srcB)
	require.NoError(t, clearer.Clear(vf))

	for _, name := range []string{"a.c", "b.c"} {
		path := dir + "/" + name + ".out"
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "clear must remove %s's target file", name)
	}

	for _, ps := range clearer.perSource {
		_, ok, err := vf.FindNodeValue(ps.name)
		require.NoError(t, err)
		assert.False(t, ok, "clear must remove the per-source VFile record")
	}
}

func TestBatchNodeAddSourceTargetsRejectsUnknownSource(t *testing.T) {
	b := &batchStubBuilder{name: "x", sig: aqlsig.Signature("v1")}
	bn := NewBatch(b, "")
	stray, _ := entity.NewSimple([]byte("x"), "stray", nil, nil)
	err := bn.AddSourceTargets(stray, []any{"out"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownSource)
}
