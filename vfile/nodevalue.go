package vfile

import (
	"bytes"
	"encoding/binary"
	"io"

	bolt "go.etcd.io/bbolt"

	"github.com/pkg/errors"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/entity"
)

// NodeValue is the object persisted per node (or per source, for a batch
// node): the input fingerprint the node was built with, the targets and
// side-effect targets it produced, and the keys of the implicit deps
// observed during that build.
type NodeValue struct {
	Name      string
	Signature aqlsig.Signature
	Targets   []entity.Entity
	ITargets  []entity.Entity
	IDepKeys  []Key
}

// Truthy reports whether v represents a built result: signature present
// and targets non-absent. A node with an intentionally empty target list
// (Targets == non-nil empty slice) is still truthy - only a nil Targets
// (never populated) is falsy. See spec.md §9's note on NodeValue.__bool__.
func (v NodeValue) Truthy() bool {
	return v.Signature.Present() && v.Targets != nil
}

func encodeNodeValue(v NodeValue) []byte {
	var buf bytes.Buffer
	writeFrame(&buf, []byte(v.Name))
	writeFrame(&buf, v.Signature)
	encodeEntityList(&buf, v.Targets)
	encodeEntityList(&buf, v.ITargets)

	binary.Write(&buf, binary.LittleEndian, uint32(len(v.IDepKeys))) //nolint:errcheck
	for _, k := range v.IDepKeys {
		writeFrame(&buf, k)
	}
	return buf.Bytes()
}

func decodeNodeValue(raw []byte) (NodeValue, error) {
	r := bytes.NewReader(raw)

	name, err := readFrame(r)
	if err != nil {
		return NodeValue{}, errors.Wrap(err, "vfile: decoding node value name")
	}
	sig, err := readFrame(r)
	if err != nil {
		return NodeValue{}, errors.Wrap(err, "vfile: decoding node value signature")
	}
	targets, err := decodeEntityList(r)
	if err != nil {
		return NodeValue{}, errors.Wrap(err, "vfile: decoding node value targets")
	}
	itargets, err := decodeEntityList(r)
	if err != nil {
		return NodeValue{}, errors.Wrap(err, "vfile: decoding node value itargets")
	}

	var idepCount uint32
	if err := binary.Read(r, binary.LittleEndian, &idepCount); err != nil {
		return NodeValue{}, errors.Wrap(err, "vfile: decoding node value idep count")
	}
	ideps := make([]Key, 0, idepCount)
	for i := uint32(0); i < idepCount; i++ {
		k, err := readFrame(r)
		if err != nil {
			return NodeValue{}, errors.Wrap(err, "vfile: decoding node value idep key")
		}
		ideps = append(ideps, Key(k))
	}

	var sigVal aqlsig.Signature
	if sig != nil {
		sigVal = aqlsig.Signature(sig)
	}
	return NodeValue{Name: string(name), Signature: sigVal, Targets: targets, ITargets: itargets, IDepKeys: ideps}, nil
}

func encodeEntityList(buf *bytes.Buffer, list []entity.Entity) {
	present := list != nil
	binary.Write(buf, binary.LittleEndian, present) //nolint:errcheck
	if !present {
		return
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(list))) //nolint:errcheck
	for _, e := range list {
		rec := encodeEntity(e)
		binary.Write(buf, binary.LittleEndian, uint32(len(rec))) //nolint:errcheck
		buf.Write(rec)
	}
}

func decodeEntityList(r *bytes.Reader) ([]entity.Entity, error) {
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
	list := make([]entity.Entity, 0, n)
	for i := uint32(0); i < n; i++ {
		var recLen uint32
		if err := binary.Read(r, binary.LittleEndian, &recLen); err != nil {
			return nil, err
		}
		rec := make([]byte, recLen)
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, err
		}
		e, err := decodeEntity(rec)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, nil
}

// FindNodeValue looks up the stored NodeValue for a node name.
func (v *VFile) FindNodeValue(name string) (NodeValue, bool, error) {
	var (
		found NodeValue
		ok    bool
	)
	err := v.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(nodeValuesBucket).Get([]byte(name))
		if raw == nil {
			return nil
		}
		nv, err := decodeNodeValue(raw)
		if err != nil {
			return err
		}
		found, ok = nv, true
		return nil
	})
	if err != nil {
		return NodeValue{}, false, errors.Wrap(err, "vfile: find_node_value")
	}
	return found, ok, nil
}

// SaveNodeValue writes (or overwrites) the NodeValue for a node name.
func (v *VFile) SaveNodeValue(value NodeValue) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(nodeValuesBucket).Put([]byte(value.Name), encodeNodeValue(value))
	})
	return errors.Wrap(err, "vfile: save_node_value")
}

// RemoveNodeValue deletes the NodeValue for a node name; idempotent.
func (v *VFile) RemoveNodeValue(name string) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(nodeValuesBucket).Delete([]byte(name))
	})
	return errors.Wrap(err, "vfile: remove_node_value")
}
