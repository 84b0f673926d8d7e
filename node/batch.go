package node

import (
	"github.com/pkg/errors"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/entity"
	"github.com/aqualid/aqlbuild/event"
	"github.com/aqualid/aqlbuild/stale"
	"github.com/aqualid/aqlbuild/vfile"
)

// perSource is one source's independent build state within a BatchNode:
// its own name/signature derived from (builder, source), and the targets
// it produced the last time it was rebuilt.
type perSource struct {
	source   entity.Entity
	name     string
	sig      aqlsig.Signature
	targets  []entity.Entity
	itargets []entity.Entity
	ideps    []entity.Entity
}

// BatchNode is Node's per-source partitioning variant: each source gets
// its own cached (name, signature) -> targets entry, so changing one
// source only invalidates that source's slice of the batch instead of
// the whole node. A compiler builder uses this to give every ".c" file
// its own staleness record while still issuing one BuildBatch call for
// every file that actually changed.
type BatchNode struct {
	builder builder.Builder
	cwd     string
	sources []any

	depHolder

	initiated bool

	sourceValuesComputed bool
	sourceValues         []entity.Entity

	perSource map[string]*perSource // keyed by source entity DumpID hash
	changed   []string              // keys of perSource entries rebuilt this run
}

// NewBatch constructs a BatchNode with the given builder, working
// directory, and sources.
func NewBatch(b builder.Builder, cwd string, sources ...any) *BatchNode {
	return &BatchNode{builder: b, cwd: cwd, sources: sources, perSource: map[string]*perSource{}}
}

func (n *BatchNode) Cwd() string { return n.cwd }

func (n *BatchNode) DepValues() []entity.Entity { return n.depHolder.DepValues() }

func (n *BatchNode) ensureInitiated() error {
	if n.initiated {
		return nil
	}
	n.initiated = true
	return runInCwd(n.cwd, func() error {
		next, err := n.builder.Initiate()
		if err != nil {
			return errors.Wrap(err, "node: initiate")
		}
		if next != nil {
			n.builder = next
		}
		return nil
	})
}

// SourceValues resolves and memoizes every source into its entities.
func (n *BatchNode) SourceValues() ([]entity.Entity, error) {
	if n.sourceValuesComputed {
		return n.sourceValues, nil
	}
	if err := n.ensureInitiated(); err != nil {
		return nil, err
	}
	resolved, err := resolveSources(n.builder, n.sources)
	if err != nil {
		return nil, errors.Wrap(err, "node: resolving batch source values")
	}
	n.sourceValues = resolved
	n.sourceValuesComputed = true
	return resolved, nil
}

func sourceKey(e entity.Entity) string {
	hash, kind := e.DumpID()
	return kind + ":" + hash.String()
}

// perSourceIdentity derives one source's independent (name, signature)
// pair from the builder and that source alone, so each source's cache
// entry is addressable without reference to its siblings.
func perSourceIdentity(b builder.Builder, source entity.Entity) (string, aqlsig.Signature) {
	name := aqlsig.StableHash(aqlsig.Sequence{
		aqlsig.Bytes(b.Name()),
		aqlsig.Bytes(source.Name()),
	}).String()

	if !source.Signature().Present() {
		return name, nil
	}
	sig := aqlsig.StableHash(aqlsig.Sequence{
		aqlsig.Bytes(sigFrame(b.Signature())),
		aqlsig.Bytes(sigFrame(source.Signature())),
	})
	return name, sig
}

// IsActual partitions the batch's sources into cached-hit and
// needs-rebuild, checking each source's (name, signature) against store
// independently. Sources whose own signature is absent are always
// considered changed. The overall return value is true only when every
// source is a cache hit; on a partial hit, the cached sources' targets
// are adopted into their perSource entries and ChangedSourceValues
// reports only the sources that still need building. sink receives
// DataFileOutOfSync if store reads come back corrupted; pass nil to skip
// that reporting.
func (n *BatchNode) IsActual(store stale.Store, built stale.BuiltSet, sink event.Sink) (bool, error) {
	sources, err := n.SourceValues()
	if err != nil {
		return false, err
	}

	n.changed = n.changed[:0]
	allActual := true

	for _, src := range sources {
		key := sourceKey(src)
		name, sig := perSourceIdentity(n.builder, src)

		ps := n.perSource[key]
		if ps == nil {
			ps = &perSource{source: src}
			n.perSource[key] = ps
		}
		ps.name, ps.sig = name, sig

		result, err := stale.Check(store, stale.Probe{Name: name, Signature: sig}, built, sink)
		if err != nil {
			return false, errors.Wrap(err, "node: batch is_actual")
		}
		if result.Actual {
			ps.targets = result.Targets
			ps.itargets = result.ITargets
			continue
		}
		allActual = false
		n.changed = append(n.changed, key)
	}

	return allActual, nil
}

// ChangedSourceValues returns the sources IsActual determined still need
// building (builder.BatchNodeContext).
func (n *BatchNode) ChangedSourceValues() []entity.Entity {
	out := make([]entity.Entity, 0, len(n.changed))
	for _, key := range n.changed {
		out = append(out, n.perSource[key].source)
	}
	return out
}

// TargetValues aggregates every source's current targets, in source
// order. A source that has neither built nor adopted a cached result
// yet causes ErrNoSourceTargets.
func (n *BatchNode) TargetValues() ([]entity.Entity, error) {
	sources, err := n.SourceValues()
	if err != nil {
		return nil, err
	}
	var all []entity.Entity
	for _, src := range sources {
		ps := n.perSource[sourceKey(src)]
		if ps == nil || ps.targets == nil {
			return nil, ErrNoSourceTargets
		}
		all = append(all, ps.targets...)
	}
	return all, nil
}

// Build resets the changed sources' produced values and runs the
// builder's batch action. The builder must call AddSourceTargets for
// every source in ChangedSourceValues.
func (n *BatchNode) Build() error {
	for _, key := range n.changed {
		ps := n.perSource[key]
		ps.targets, ps.itargets, ps.ideps = nil, nil, nil
	}

	if err := n.ensureInitiated(); err != nil {
		return err
	}
	if err := runInCwd(n.cwd, func() error {
		return n.builder.BuildBatch(n)
	}); err != nil {
		return errors.Wrap(err, "node: build_batch")
	}

	for _, key := range n.changed {
		if n.perSource[key].targets == nil {
			return ErrNoSourceTargets
		}
	}
	return nil
}

// AddSourceTargets implements builder.SourceRecorder.
func (n *BatchNode) AddSourceTargets(source entity.Entity, targets, sideEffects, implicitDeps []any, tags []string) error {
	key := sourceKey(source)
	ps := n.perSource[key]
	if ps == nil {
		return ErrUnknownSource
	}

	targetEntities, err := makeValues(n.builder, targets, false, tags)
	if err != nil {
		return errors.Wrap(err, "node: add_source_targets: targets")
	}
	itargetEntities, err := makeValues(n.builder, sideEffects, false, nil)
	if err != nil {
		return errors.Wrap(err, "node: add_source_targets: side effects")
	}
	idepEntities, err := makeValues(n.builder, implicitDeps, true, nil)
	if err != nil {
		return errors.Wrap(err, "node: add_source_targets: implicit deps")
	}

	if ps.targets == nil {
		ps.targets = []entity.Entity{}
	}
	ps.targets = append(ps.targets, targetEntities...)
	ps.itargets = append(ps.itargets, itargetEntities...)
	ps.ideps = append(ps.ideps, idepEntities...)
	return nil
}

// Save persists every changed source's result as its own NodeValue row.
// Sources that were cache hits this run are left untouched.
func (n *BatchNode) Save(store *vfile.VFile) error {
	for _, key := range n.changed {
		ps := n.perSource[key]
		for _, t := range ps.targets {
			if !t.IsActual() {
				return ErrUnactualValue
			}
		}
		for _, it := range ps.itargets {
			if !it.IsActual() {
				return ErrUnactualValue
			}
		}
		for _, id := range ps.ideps {
			if !id.IsActual() {
				return ErrUnactualValue
			}
		}

		idepKeys, err := store.AddValues(ps.ideps)
		if err != nil {
			return errors.Wrap(err, "node: batch save: persisting implicit deps")
		}
		if err := store.SaveNodeValue(vfile.NodeValue{
			Name: ps.name, Signature: ps.sig, Targets: ps.targets, ITargets: ps.itargets, IDepKeys: idepKeys,
		}); err != nil {
			return errors.Wrap(err, "node: batch save")
		}
	}
	return nil
}

// Clear discards every source's cached result: stored targets are
// adopted, their backing files removed, and their VFile records deleted.
func (n *BatchNode) Clear(store *vfile.VFile) error {
	sources, err := n.SourceValues()
	if err != nil {
		return err
	}

	for _, src := range sources {
		key := sourceKey(src)
		name, sig := perSourceIdentity(n.builder, src)
		ps := n.perSource[key]
		if ps == nil {
			ps = &perSource{source: src}
			n.perSource[key] = ps
		}
		ps.name, ps.sig = name, sig

		stored, ok, err := store.FindNodeValue(name)
		if err != nil {
			return errors.Wrap(err, "node: batch clear: looking up node value")
		}
		if ok {
			ps.targets, ps.itargets = stored.Targets, stored.ITargets
		}
		for _, t := range ps.targets {
			t.Remove()
		}
		for _, it := range ps.itargets {
			it.Remove()
		}
		if err := store.RemoveNodeValue(name); err != nil {
			return errors.Wrap(err, "node: batch clear: removing node value")
		}
	}

	if err := n.ensureInitiated(); err != nil {
		return err
	}
	return runInCwd(n.cwd, func() error {
		return n.builder.Clear(emptyNodeContext{n})
	})
}

// emptyNodeContext adapts a BatchNode to builder.NodeContext so its
// builder's Clear hook (shared with Node) has something to call - a
// batch node has no single target set, so AddTargets is forbidden on this
// view; SourceValues returns all of the batch's source values.
type emptyNodeContext struct {
	n *BatchNode
}

func (e emptyNodeContext) Cwd() string { return e.n.Cwd() }

func (e emptyNodeContext) DepValues() []entity.Entity { return e.n.DepValues() }

func (e emptyNodeContext) SourceValues() ([]entity.Entity, error) { return e.n.SourceValues() }

func (e emptyNodeContext) AddTargets([]any, []any, []any, []string) error {
	return ErrNotBatchMethod
}
