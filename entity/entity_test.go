package entity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqualid/aqlbuild/aqlsig"
)

func TestNullEntityNeverActual(t *testing.T) {
	n := Null()
	assert.False(t, n.IsActual())
	assert.Equal(t, "N", n.Name())
	assert.Equal(t, KindNull, n.Kind())

	n2 := Null()
	assert.True(t, n.Equal(n2))
}

func TestSimpleEntityDerivesSignatureAndName(t *testing.T) {
	e, err := NewSimple([]byte("hello"), "", nil, nil)
	require.NoError(t, err)
	assert.True(t, e.Signature().Present())
	assert.Equal(t, string(e.Signature()), e.Name())
	assert.True(t, e.IsActual())

	e2, err := NewSimple([]byte("hello"), "", nil, nil)
	require.NoError(t, err)
	assert.True(t, e.Equal(e2))
}

func TestSimpleEntityEmptyNameError(t *testing.T) {
	_, err := NewSimple(nil, "", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestSignatureEntityGetReturnsBytes(t *testing.T) {
	e, err := NewSignature([]byte{1, 2, 3}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, e.Get())
	assert.True(t, e.IsActual())
}

func TestFileEntityNormalizesDifferentSpellings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	e1, err := NewFileChecksum(path, nil, nil)
	require.NoError(t, err)

	spelled := filepath.Join(dir, ".", "a.c")
	e2, err := NewFileChecksum(spelled, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, e1.Name(), e2.Name())
}

func TestFileChecksumActualityAndRefresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(path, []byte("int a=1;"), 0o644))

	sig, err := aqlsig.FileContentSignature(path, 0)
	require.NoError(t, err)

	e, err := NewFileChecksum(path, sig, nil)
	require.NoError(t, err)
	assert.True(t, e.IsActual())

	require.NoError(t, os.WriteFile(path, []byte("int a=2;"), 0o644))
	assert.False(t, e.IsActual())

	actual, err := e.GetActual()
	require.NoError(t, err)
	assert.True(t, actual.IsActual())
	assert.Equal(t, e.ID(), actual.ID())
	assert.False(t, e.Equal(actual))
}

func TestFileChecksumMissingFileIsNotActual(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.c")
	e, err := NewFileChecksum(path, aqlsig.Signature("whatever"), nil)
	require.NoError(t, err)
	assert.False(t, e.IsActual())
}

func TestFilePartChecksumOffsetAffectsEquality(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.bin")
	require.NoError(t, os.WriteFile(path, []byte("HEADERtail"), 0o644))

	sig, err := aqlsig.FileContentSignature(path, 6)
	require.NoError(t, err)

	a, err := NewFilePartChecksum(path, 6, sig, nil)
	require.NoError(t, err)
	b, err := NewFilePartChecksum(path, 0, sig, nil)
	require.NoError(t, err)

	// Same name/signature, different offset: Entity.Equal alone can't see
	// this, EqualFilePart must.
	assert.True(t, a.Equal(b))
	assert.False(t, EqualFilePart(a, b))
}

func TestDirEntityRemoveOnlyIfEmpty(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "build")
	require.NoError(t, os.Mkdir(sub, 0o755))

	d, err := NewDir(sub, nil, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "f"), []byte("x"), 0o644))
	d.Remove()
	_, statErr := os.Stat(sub)
	assert.NoError(t, statErr, "non-empty directory must survive Remove")

	require.NoError(t, os.Remove(filepath.Join(sub, "f")))
	d.Remove()
	_, statErr = os.Stat(sub)
	assert.True(t, os.IsNotExist(statErr), "empty directory must be removed")
}

func TestTagsFilterAndHasAnyTag(t *testing.T) {
	e, err := NewSimple([]byte("x"), "", nil, []string{"public"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"public"}, e.Tags())
	assert.True(t, e.HasAnyTag(map[string]struct{}{"public": {}}))
	assert.False(t, e.HasAnyTag(map[string]struct{}{"private": {}}))
}

func TestRoundTripArgsForEveryKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	entities := []Entity{
		Null(),
		mustSimple(t, []byte("data"), "name", []string{"t1"}),
		mustSignature(t, []byte{9, 9, 9}, "signame"),
		mustFileChecksum(t, path, aqlsig.Signature("abc")),
		mustFilePart(t, path, 4, aqlsig.Signature("abc")),
		mustFileTimestamp(t, path, aqlsig.Signature("abc")),
		mustDir(t, dir, aqlsig.Signature("abc")),
	}

	for _, e := range entities {
		kind, name, data, sig, offset, tags := e.Args()
		reconstructed := FromArgs(kind, name, data, sig, offset, tags)
		assert.True(t, e.Equal(reconstructed), "round trip mismatch for %s", e.Kind())
		assert.Equal(t, e.ID(), reconstructed.ID())
	}
}

func TestEntityEqualityIsEquivalenceRelation(t *testing.T) {
	a := mustSimple(t, []byte("x"), "n", nil)
	b := mustSimple(t, []byte("x"), "n", nil)
	c := mustSimple(t, []byte("y"), "n", nil)

	assert.True(t, a.Equal(a), "reflexive")
	assert.True(t, a.Equal(b) == b.Equal(a), "symmetric")
	assert.False(t, a.Equal(c))

	hashA, classA := a.DumpID()
	hashB, classB := b.DumpID()
	assert.True(t, strings.EqualFold(classA, classB))
	assert.True(t, hashA.Equal(hashB))
}

func mustSimple(t *testing.T, data []byte, name string, tags []string) Entity {
	t.Helper()
	e, err := NewSimple(data, name, nil, tags)
	require.NoError(t, err)
	return e
}

func mustSignature(t *testing.T, data []byte, name string) Entity {
	t.Helper()
	e, err := NewSignature(data, name, nil)
	require.NoError(t, err)
	return e
}

func mustFileChecksum(t *testing.T, path string, sig aqlsig.Signature) Entity {
	t.Helper()
	e, err := NewFileChecksum(path, sig, nil)
	require.NoError(t, err)
	return e
}

func mustFilePart(t *testing.T, path string, offset int64, sig aqlsig.Signature) Entity {
	t.Helper()
	e, err := NewFilePartChecksum(path, offset, sig, nil)
	require.NoError(t, err)
	return e
}

func mustFileTimestamp(t *testing.T, path string, sig aqlsig.Signature) Entity {
	t.Helper()
	e, err := NewFileTimestamp(path, sig, nil)
	require.NoError(t, err)
	return e
}

func mustDir(t *testing.T, path string, sig aqlsig.Signature) Entity {
	t.Helper()
	e, err := NewDir(path, sig, nil)
	require.NoError(t, err)
	return e
}
