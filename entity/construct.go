package entity

import (
	"github.com/aqualid/aqlbuild/aqlsig"
)

func toTagSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Null returns the fixed NullEntity: name "N", signature always absent,
// never actual. It exists as an explicit placeholder value, e.g. for a
// builder that intentionally produces nothing for one source.
func Null() Entity {
	return Entity{kind: KindNull, name: "N"}
}

// NewSimple wraps an opaque in-memory datum. If signature is nil it is
// derived by hashing data. If name is empty, it defaults to the signature
// itself (so two anonymous blobs with identical content collide to the
// same VFile row, matching the Python original's SimpleEntity.__new__).
func NewSimple(data []byte, name string, signature aqlsig.Signature, tags []string) (Entity, error) {
	if signature == nil && data != nil {
		signature = aqlsig.StableHash(aqlsig.Bytes(data))
	}
	if name == "" {
		name = string(signature)
	}
	if name == "" {
		return Entity{}, ErrEmptyName
	}
	return Entity{kind: KindSimple, name: name, signature: signature, data: data, tags: toTagSet(tags)}, nil
}

// NewSignature wraps a raw byte string used directly as the signature; it
// is fixed-size and exists to cheaply embed a foreign (externally computed)
// checksum as an entity without rehashing it.
func NewSignature(data []byte, name string, tags []string) (Entity, error) {
	if name == "" {
		name = string(data)
	}
	if name == "" {
		return Entity{}, ErrEmptyName
	}
	return Entity{kind: KindSignature, name: name, signature: aqlsig.Signature(data), tags: toTagSet(tags)}, nil
}

// NewFileChecksum represents a file whose signature is a content hash of
// the whole file. name is normalized to an absolute, canonical path. If
// signature is nil it is computed from the file on disk (and stays absent
// if the file cannot be read); the same holds for every file constructor.
func NewFileChecksum(path string, signature aqlsig.Signature, tags []string) (Entity, error) {
	if path == "" {
		return Entity{}, ErrEmptyName
	}
	return withDiskSignature(Entity{kind: KindFileChecksum, name: normalizePath(path), signature: signature, tags: toTagSet(tags)}), nil
}

// withDiskSignature fills in a file entity's signature from disk when the
// caller supplied none.
func withDiskSignature(e Entity) Entity {
	if e.signature == nil {
		e.signature, _ = e.signatureOfTruth()
	}
	return e
}

// NewFilePartChecksum represents a file whose signature is a content hash
// computed from offset onward - used for archives where a prefix may be
// rewritten by tooling but the tail is authoritative. Equality additionally
// compares offset (callers construct with the same offset every time, so
// this mirrors through Entity.Offset + Entity.Equal's name/signature check
// plus an explicit offset comparison in EqualFilePart).
func NewFilePartChecksum(path string, offset int64, signature aqlsig.Signature, tags []string) (Entity, error) {
	if path == "" {
		return Entity{}, ErrEmptyName
	}
	return withDiskSignature(Entity{kind: KindFilePartChecksum, name: normalizePath(path), offset: offset, signature: signature, tags: toTagSet(tags)}), nil
}

// NewFileTimestamp represents a file whose signature encodes (mtime, size).
func NewFileTimestamp(path string, signature aqlsig.Signature, tags []string) (Entity, error) {
	if path == "" {
		return Entity{}, ErrEmptyName
	}
	return withDiskSignature(Entity{kind: KindFileTimestamp, name: normalizePath(path), signature: signature, tags: toTagSet(tags)}), nil
}

// NewDir is like NewFileTimestamp, but Remove deletes the directory (only
// if it is empty).
func NewDir(path string, signature aqlsig.Signature, tags []string) (Entity, error) {
	if path == "" {
		return Entity{}, ErrEmptyName
	}
	return withDiskSignature(Entity{kind: KindDir, name: normalizePath(path), signature: signature, tags: toTagSet(tags)}), nil
}

// EqualFilePart compares two FilePartChecksumEntity values including their
// offsets, which Entity.Equal does not see.
func EqualFilePart(a, b Entity) bool {
	return a.Equal(b) && a.offset == b.offset
}

// Args returns the entity's constructor arguments in a form that
// round-trips through the relevant New* constructor: (kind, name, raw
// datum-or-nil, signature, offset, tags). VFile encoding and the
// round-trip property test (spec §8) both use this instead of reaching
// into Entity's unexported fields.
func (e Entity) Args() (kind Kind, name string, data []byte, signature aqlsig.Signature, offset int64, tags []string) {
	return e.kind, e.name, e.data, e.signature, e.offset, e.Tags()
}

// FromArgs reconstructs an Entity from the tuple returned by Args, without
// re-deriving a signature or re-normalizing a path (the values are assumed
// already canonical, e.g. when round-tripping a VFile record).
func FromArgs(kind Kind, name string, data []byte, signature aqlsig.Signature, offset int64, tags []string) Entity {
	return Entity{kind: kind, name: name, data: data, signature: signature, offset: offset, tags: toTagSet(tags)}
}
