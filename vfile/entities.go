package vfile

import (
	"bytes"
	"encoding/binary"
	"io"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"

	"github.com/pkg/errors"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/entity"
)

// keyFor returns the bucket key for an entity id: a one-byte kind tag
// followed by the entity's DumpID structural hash, mirroring the teacher's
// dataBucketKey (docker/daemon/signatures/data.go), which joins a
// config digest and a manifest digest into one NUL-free composite key.
func keyFor(e entity.Entity) Key {
	hash, _ := e.DumpID()
	k := make([]byte, 0, 1+len(hash))
	k = append(k, byte(e.Kind()))
	k = append(k, hash...)
	return Key(k)
}

// encodeEntity serializes an entity to a self-contained byte record:
// kind, name, data, signature, offset, tags - each length-prefixed, the
// way data.go's readSignatures/writeSignatures frame each stored value
// with an explicit length instead of relying on delimiters.
func encodeEntity(e entity.Entity) []byte {
	kind, name, data, sig, offset, tags := e.Args()

	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	writeFrame(&buf, []byte(name))
	writeFrame(&buf, data)
	writeFrame(&buf, sig)
	binary.Write(&buf, binary.LittleEndian, offset) //nolint:errcheck

	binary.Write(&buf, binary.LittleEndian, uint32(len(tags))) //nolint:errcheck
	for _, t := range tags {
		writeFrame(&buf, []byte(t))
	}
	return buf.Bytes()
}

func decodeEntity(raw []byte) (entity.Entity, error) {
	r := bytes.NewReader(raw)

	kindByte, err := r.ReadByte()
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity kind")
	}
	name, err := readFrame(r)
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity name")
	}
	data, err := readFrame(r)
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity data")
	}
	sig, err := readFrame(r)
	if err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity signature")
	}
	var offset int64
	if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity offset")
	}
	var tagCount uint32
	if err := binary.Read(r, binary.LittleEndian, &tagCount); err != nil {
		return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity tag count")
	}
	tags := make([]string, 0, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		tag, err := readFrame(r)
		if err != nil {
			return entity.Entity{}, errors.Wrap(err, "vfile: decoding entity tag")
		}
		tags = append(tags, string(tag))
	}

	var sigVal aqlsig.Signature
	if sig != nil {
		sigVal = aqlsig.Signature(sig)
	}
	return entity.FromArgs(entity.Kind(kindByte), string(name), data, sigVal, offset, tags), nil
}

func writeFrame(w io.Writer, b []byte) {
	present := b != nil
	binary.Write(w, binary.LittleEndian, present) //nolint:errcheck
	if !present {
		return
	}
	binary.Write(w, binary.LittleEndian, uint32(len(b))) //nolint:errcheck
	w.Write(b)                                           //nolint:errcheck
}

func readFrame(r *bytes.Reader) ([]byte, error) {
	var present bool
	if err := binary.Read(r, binary.LittleEndian, &present); err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Find looks up the stored entity matching probe's (class, name) id, or
// reports ok=false if there is none.
func (v *VFile) Find(probe entity.Entity) (entity.Entity, bool, error) {
	key := keyFor(probe)
	if e, ok := v.cache.get(key); ok {
		return e, true, nil
	}

	var (
		found entity.Entity
		ok    bool
	)
	err := v.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(entitiesBucket).Get(key)
		if raw == nil {
			return nil
		}
		e, err := decodeEntity(raw)
		if err != nil {
			return err
		}
		found, ok = e, true
		return nil
	})
	if err != nil {
		return entity.Entity{}, false, errors.Wrap(err, "vfile: find")
	}
	if ok {
		v.cache.put(key, found)
	}
	return found, ok, nil
}

// GetValues batch-fetches entities by key, returning ok=false for the
// whole call if any key is missing - matching spec.md §4.C's "absent if
// any key missing" contract for idep validation.
func (v *VFile) GetValues(keys []Key) ([]entity.Entity, bool, error) {
	out := make([]entity.Entity, len(keys))
	ok := true
	err := v.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entitiesBucket)
		for i, key := range keys {
			raw := b.Get(key)
			if raw == nil {
				ok = false
				return nil
			}
			e, err := decodeEntity(raw)
			if err != nil {
				return err
			}
			out[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "vfile: get_values")
	}
	if !ok {
		return nil, false, nil
	}
	return out, true, nil
}

// AddValue inserts or updates e by id and returns a stable key.
func (v *VFile) AddValue(e entity.Entity) (Key, error) {
	key := keyFor(e)
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entitiesBucket).Put(key, encodeEntity(e))
	})
	if err != nil {
		return nil, errors.Wrap(err, "vfile: add_value")
	}
	v.cache.put(key, e)
	return key, nil
}

// AddValues batch-inserts entities, computing their encoded records
// concurrently (via golang.org/x/sync/errgroup - useful when many of the
// entities are FileChecksumEntity values whose DumpID/encode work involves
// no I/O but whose callers, e.g. BatchNode.Save, are about to have hashed a
// batch of files just beforehand) before a single serialized bbolt
// transaction commits them all atomically.
func (v *VFile) AddValues(entities []entity.Entity) ([]Key, error) {
	keys := make([]Key, len(entities))
	records := make([][]byte, len(entities))

	var g errgroup.Group
	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			keys[i] = keyFor(e)
			records[i] = encodeEntity(e)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "vfile: add_values: encoding")
	}

	err := v.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entitiesBucket)
		for i, key := range keys {
			if err := b.Put(key, records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "vfile: add_values")
	}
	for i, e := range entities {
		v.cache.put(keys[i], e)
	}
	return keys, nil
}

// ReplaceValue overwrites the record at key in place, preserving the key
// (and thus the id) while replacing the stored entity - used by the
// staleness protocol's implicit-dep repair step (spec.md §4.E step 4).
func (v *VFile) ReplaceValue(key Key, e entity.Entity) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entitiesBucket).Put(key, encodeEntity(e))
	})
	if err != nil {
		return errors.Wrap(err, "vfile: replace_value")
	}
	v.cache.put(key, e)
	return nil
}

// RemoveValues deletes entities by id; it is idempotent - removing an
// already-absent entity is not an error.
func (v *VFile) RemoveValues(entities []entity.Entity) error {
	keys := make([]Key, len(entities))
	for i, e := range entities {
		keys[i] = keyFor(e)
	}
	err := v.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entitiesBucket)
		for _, key := range keys {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "vfile: remove_values")
	}
	for _, key := range keys {
		v.cache.delete(key)
	}
	return nil
}
