// Package entity implements the build's value model: content-addressed
// files and opaque blobs with pluggable signature strategies and actuality
// checks.
//
// The original implementation (Aqualid, a Python project) dispatched
// through a class hierarchy with one Python class per variant. Go has no
// cheap open class hierarchy with value semantics, so Entity is a tagged
// sum: one struct, a Kind tag, and kind-specific fields, with every method
// switching on Kind. This keeps entities comparable with ==-shaped
// equality and trivially serializable for VFile.
package entity

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/aqualid/aqlbuild/aqlsig"
)

// Kind identifies which of the seven closed entity variants a value is.
type Kind uint8

const (
	// KindNull is a fixed placeholder value that is never actual.
	KindNull Kind = iota
	// KindSimple is an opaque in-memory datum, signed by hashing it.
	KindSimple
	// KindSignature wraps a raw byte string used directly as the signature.
	KindSignature
	// KindFileChecksum signs a file by hashing its whole content.
	KindFileChecksum
	// KindFilePartChecksum signs a file from a byte offset onward.
	KindFilePartChecksum
	// KindFileTimestamp signs a file by (mtime, size).
	KindFileTimestamp
	// KindDir is like KindFileTimestamp, but Remove deletes an empty directory.
	KindDir
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NullEntity"
	case KindSimple:
		return "SimpleEntity"
	case KindSignature:
		return "SignatureEntity"
	case KindFileChecksum:
		return "FileChecksumEntity"
	case KindFilePartChecksum:
		return "FilePartChecksumEntity"
	case KindFileTimestamp:
		return "FileTimestampEntity"
	case KindDir:
		return "DirEntity"
	default:
		return "UnknownEntity"
	}
}

// ErrEmptyName is returned by the New* constructors when the name (or
// path) is empty and cannot be derived from the signature or data.
var ErrEmptyName = errors.New("entity: name is empty")

// ErrInvalidSignatureDataType reports signature data that is not a byte
// string. No constructor in this package returns it: NewSignature takes
// its data as []byte, so the type is already checked at compile time.
var ErrInvalidSignatureDataType = errors.New("entity: signature data must be a byte string")

// ID is the (class, name) pair; two entities are equivalent only if both match.
type ID struct {
	Kind Kind
	Name string
}

// Entity represents one indivisible value tracked by the build: a file or
// an opaque blob, with identity, signature, and actuality.
type Entity struct {
	kind      Kind
	name      string
	signature aqlsig.Signature
	tags      map[string]struct{}

	// data holds the SimpleEntity datum; unused by other kinds.
	data []byte
	// offset holds the FilePartChecksumEntity byte offset; unused by other kinds.
	offset int64
}

// Tags returns the entity's tag set as a sorted slice, or nil if untagged.
func (e Entity) Tags() []string {
	if len(e.tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.tags))
	for t := range e.tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HasAnyTag reports whether e carries at least one tag in want.
func (e Entity) HasAnyTag(want map[string]struct{}) bool {
	for t := range want {
		if _, ok := e.tags[t]; ok {
			return true
		}
	}
	return false
}

// Kind returns the entity's concrete variant.
func (e Entity) Kind() Kind { return e.kind }

// Name returns the entity's domain-unique name within its class.
func (e Entity) Name() string { return e.name }

// Signature returns the entity's recorded signature; absent (nil) means "no
// known content".
func (e Entity) Signature() aqlsig.Signature { return e.signature }

// ID returns the (class, name) identity pair used for VFile lookups.
func (e Entity) ID() ID { return ID{Kind: e.kind, Name: e.name} }

// Equal reports entity equality: class, name, and signature must all match.
func (e Entity) Equal(other Entity) bool {
	return e.kind == other.kind && e.name == other.name && e.signature.Equal(other.signature)
}

// DumpID emits a stable serialization of the entity's identity, suitable as
// a VFile key: a structural hash of the name, plus the class tag.
func (e Entity) DumpID() (aqlsig.Signature, string) {
	return aqlsig.StableHash(aqlsig.Sequence{aqlsig.Bytes(e.name)}), e.kind.String()
}

// Get returns the entity's "value": the path for file entities, the datum
// for SimpleEntity, the raw bytes for SignatureEntity, and nil for NullEntity.
func (e Entity) Get() any {
	switch e.kind {
	case KindSimple:
		return e.data
	case KindSignature:
		return []byte(e.signature)
	case KindFileChecksum, KindFilePartChecksum, KindFileTimestamp, KindDir:
		return e.name
	default:
		return nil
	}
}

// Offset returns the FilePartChecksumEntity byte offset (0 for other kinds).
func (e Entity) Offset() int64 { return e.offset }

// IsActual performs the cheap actuality check using only the stored
// signature: for in-memory entities, truthy iff present; for file
// entities, the stored signature is recomputed from disk and compared.
func (e Entity) IsActual() bool {
	switch e.kind {
	case KindNull:
		return false
	case KindSimple, KindSignature:
		return e.signature.Present()
	case KindFileChecksum, KindFilePartChecksum, KindFileTimestamp, KindDir:
		fresh, err := e.signatureOfTruth()
		if err != nil {
			return false
		}
		return e.signature.Present() && e.signature.Equal(fresh)
	default:
		return false
	}
}

// GetActual returns e unchanged if it is already actual, or a clone with a
// freshly recomputed signature (file entities only). It never mutates e:
// the clone preserves ID and tags, only the signature differs.
func (e Entity) GetActual() (Entity, error) {
	switch e.kind {
	case KindFileChecksum, KindFilePartChecksum, KindFileTimestamp, KindDir:
		fresh, err := e.signatureOfTruth()
		if err != nil {
			clone := e
			clone.signature = nil
			return clone, nil
		}
		if e.signature.Equal(fresh) {
			return e, nil
		}
		clone := e
		clone.signature = fresh
		return clone, nil
	default:
		return e, nil
	}
}

// signatureOfTruth recomputes a file entity's signature from disk, falling
// back from content hashing to a (mtime, size) signature on I/O error, and
// finally to absent if both fail.
func (e Entity) signatureOfTruth() (aqlsig.Signature, error) {
	switch e.kind {
	case KindFileChecksum:
		if sig, err := aqlsig.FileContentSignature(e.name, 0); err == nil {
			return sig, nil
		}
		return aqlsig.FileTimeSignature(e.name)
	case KindFilePartChecksum:
		if sig, err := aqlsig.FileContentSignature(e.name, e.offset); err == nil {
			return sig, nil
		}
		return aqlsig.FileTimeSignature(e.name)
	case KindFileTimestamp, KindDir:
		return aqlsig.FileTimeSignature(e.name)
	default:
		return nil, errors.Errorf("entity: %s has no signature of truth", e.kind)
	}
}

// Remove deletes the backing file for file entities (or, for KindDir, the
// directory itself, only if empty); it is a no-op for in-memory entities.
// Filesystem errors are swallowed: removal is best-effort cleanup, never a
// build-breaking failure.
func (e Entity) Remove() {
	switch e.kind {
	case KindFileChecksum, KindFilePartChecksum, KindFileTimestamp, KindDir:
		// os.Remove refuses a non-empty directory, which is exactly the
		// "only if empty" contract KindDir needs.
		_ = os.Remove(e.name)
	}
}

// normalizePath returns the canonical form of a file path: absolute,
// cleaned, and case-folded on platforms where the filesystem is
// case-insensitive. Two different spellings of the same file must
// normalize to the same string so their entities compare equal.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	clean := filepath.Clean(abs)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		clean = strings.ToLower(clean)
	}
	return clean
}
