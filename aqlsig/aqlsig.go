// Package aqlsig provides the signature primitives entities and nodes are
// built on: a stable hash over structured in-memory values, and the two file
// signature strategies (content checksum, mtime+size) the entity model
// dispatches between.
package aqlsig

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// Signature is an opaque byte string summarizing an entity's content at a
// point in time. A nil Signature means "no known content".
type Signature []byte

// Present reports whether sig carries an actual value (as opposed to the
// sentinel "absent" state used throughout the staleness protocol).
func (s Signature) Present() bool {
	return s != nil
}

// Equal compares two signatures by content, treating two absent signatures
// as equal and an absent/present pair as unequal.
func (s Signature) Equal(other Signature) bool {
	if s.Present() != other.Present() {
		return false
	}
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	if !s.Present() {
		return "<absent>"
	}
	return fmt.Sprintf("%x", []byte(s))
}

// stableValue is the interface structured inputs to StableHash must satisfy:
// a deterministic, order-independent encoding into the hasher. Callers that
// only have primitive values wrap them in Bytes or Strings.
type stableValue interface {
	encodeStable(w io.Writer)
}

// Bytes is a stableValue wrapping a raw byte string.
type Bytes []byte

func (b Bytes) encodeStable(w io.Writer) { writeFramed(w, b) }

// Strings is a stableValue wrapping a sorted sequence of strings; sorting
// happens at encode time so callers never need to pre-sort, and the hash
// never depends on caller iteration order.
type Strings []string

func (s Strings) encodeStable(w io.Writer) {
	sorted := append([]string(nil), s...)
	sort.Strings(sorted)
	binary.Write(w, binary.LittleEndian, uint64(len(sorted))) //nolint:errcheck // hash.Hash.Write never fails
	for _, v := range sorted {
		writeFramed(w, []byte(v))
	}
}

// Sequence is a stableValue composing other stableValues, in the given
// (already meaningful) order - used for fields whose order is part of the
// identity, such as a node's dep_values after they've been sorted by name.
type Sequence []stableValue

func (seq Sequence) encodeStable(w io.Writer) {
	binary.Write(w, binary.LittleEndian, uint64(len(seq))) //nolint:errcheck
	for _, v := range seq {
		v.encodeStable(w)
	}
}

func writeFramed(w io.Writer, b []byte) {
	binary.Write(w, binary.LittleEndian, uint64(len(b))) //nolint:errcheck
	w.Write(b)                                           //nolint:errcheck
}

// StableHash returns a deterministic digest of a structured value built from
// Bytes/Strings/Sequence building blocks. It never depends on map iteration
// order, process memory addresses, or wall-clock time: the same logical
// value hashes identically in any process, on any run.
//
// BLAKE2b-256 is used rather than the SHA-256-based digest.Digest used for
// file content (see FileContentSignature): this hash never crosses a
// process boundary or gets compared against an external tool's checksum, so
// a faster, keyless hash is preferable to the wire-grade one.
func StableHash(v stableValue) Signature {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for a non-nil key of the wrong size; we
		// never pass a key.
		panic(errors.Wrap(err, "aqlsig: blake2b.New256"))
	}
	v.encodeStable(h)
	return Signature(h.Sum(nil))
}

// FileContentSignature reads path (or, if offset is non-zero, the suffix of
// path starting at offset) and returns a content hash of the bytes read.
// This is FileChecksumEntity/FilePartChecksumEntity's signature of truth.
func FileContentSignature(path string, offset int64) (Signature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "aqlsig: opening %s", path)
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, errors.Wrapf(err, "aqlsig: seeking %s to offset %d", path, offset)
		}
	}

	digester := digest.Canonical.Digester()
	if _, err := io.Copy(digester.Hash(), f); err != nil {
		return nil, errors.Wrapf(err, "aqlsig: reading %s", path)
	}
	return Signature(digester.Digest().String()), nil
}

// FileTimeSignature returns a signature encoding a file's (mtime, size),
// cheap enough to recompute on every staleness check without reading file
// content. This is FileTimestampEntity/DirEntity's signature of truth, and
// FileChecksumEntity's fallback when content hashing fails with an I/O
// error.
func FileTimeSignature(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "aqlsig: stat %s", path)
	}

	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(info.ModTime().UnixNano()))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(info.Size()))
	return Signature(buf), nil
}
