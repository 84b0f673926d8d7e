// Package node implements the build's unit of work: Node (one input set,
// one builder, one cached result) and BatchNode (Node's per-source
// partitioning variant), plus the staleness wiring that lets a build skip
// work a VFile already has a valid record for.
//
// Grounded on original_source/aql/nodes/aql_node.py: name/signature
// memoization, the dep_nodes/dep_values split, and the target/itarget/idep
// three-way split on what AddTargets records all come from that file, with
// Python's attribute-lookup-triggered computation turned into explicit
// memoized accessor methods - Go has no __getattr__ to intercept an
// unpopulated field read.
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

// Node is one unit of work: a builder plus the sources it consumes,
// producing targets the build (or other nodes) can depend on. A Node is
// owned by exactly one worker at a time; it is not safe for concurrent
// mutation.
type Node struct {
	builder builder.Builder
	cwd     string
	sources []any

	depHolder

	prepared bool

	nameComputed bool
	name         string
	sigComputed  bool
	signature    aqlsig.Signature

	sourceValuesComputed bool
	sourceValues         []entity.Entity

	targets  []entity.Entity // nil until AddTargets is first called
	itargets []entity.Entity
	ideps    []entity.Entity
}

// New constructs a Node with the given builder, working directory
// (""  means "inherit the process cwd"), and sources. Sources may be
// *Node, TargetsFilter, entity.Entity, or any raw value the builder knows
// how to canonicalize via MakeValue.
func New(b builder.Builder, cwd string, sources ...any) *Node {
	return &Node{builder: b, cwd: cwd, sources: sources}
}

// Cwd returns the node's working directory.
func (n *Node) Cwd() string { return n.cwd }

// ensurePrepared runs the builder's three one-shot pre-resolution hooks,
// in the order spec.md §6 implies: Initiate (may swap in a specialized
// builder, run with the node's cwd active), Replace (a last-chance source
// rewrite, run before anything resolves or hashes the original sources),
// and Depends (extra dependency entities folded in before the signature
// is ever hashed). All three run at most once per node.
func (n *Node) ensurePrepared() error {
	if n.prepared {
		return nil
	}
	n.prepared = true

	if err := runInCwd(n.cwd, func() error {
		next, err := n.builder.Initiate()
		if err != nil {
			return errors.Wrap(err, "node: initiate")
		}
		if next != nil {
			n.builder = next
		}
		return nil
	}); err != nil {
		return err
	}

	if sources, ok, err := n.builder.Replace(n); err != nil {
		return errors.Wrap(err, "node: replace")
	} else if ok {
		n.sources = sources
	}

	if deps, ok, err := n.builder.Depends(n); err != nil {
		return errors.Wrap(err, "node: depends")
	} else if ok {
		for _, dep := range deps {
			if err := n.depHolder.Depends(dep); err != nil {
				return errors.Wrap(err, "node: depends")
			}
		}
	}

	return nil
}

// SourceValues resolves and memoizes every source into its entities.
func (n *Node) SourceValues() ([]entity.Entity, error) {
	if n.sourceValuesComputed {
		return n.sourceValues, nil
	}
	if err := n.ensurePrepared(); err != nil {
		return nil, err
	}
	resolved, err := resolveSources(n.builder, n.sources)
	if err != nil {
		return nil, errors.Wrap(err, "node: resolving source values")
	}
	n.sourceValues = resolved
	n.sourceValuesComputed = true
	return resolved, nil
}

// TargetValues returns the node's current targets, or ErrNoTargets if the
// node has neither built nor adopted a cached result yet.
func (n *Node) TargetValues() ([]entity.Entity, error) {
	if n.targets == nil {
		return nil, ErrNoTargets
	}
	return n.targets, nil
}

// Name returns the node's memoized identity string: the builder's
// declared target fingerprint when GetTargetValues knows it in advance,
// otherwise a hash of the builder's name and the node's source names.
func (n *Node) Name() (string, error) {
	if n.nameComputed {
		return n.name, nil
	}
	if err := n.ensurePrepared(); err != nil {
		return "", err
	}

	if targets, ok, err := n.builder.GetTargetValues(n); err != nil {
		return "", errors.Wrap(err, "node: get_target_values")
	} else if ok {
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = t.Name()
		}
		n.name = aqlsig.StableHash(aqlsig.Sequence{
			aqlsig.Bytes(n.builder.Name()),
			aqlsig.Strings(names),
		}).String()
		n.nameComputed = true
		return n.name, nil
	}

	sources, err := n.SourceValues()
	if err != nil {
		return "", err
	}
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	n.name = aqlsig.StableHash(aqlsig.Sequence{
		aqlsig.Bytes(n.builder.Name()),
		aqlsig.Strings(names),
	}).String()
	n.nameComputed = true
	return n.name, nil
}

// Signature returns the node's memoized input fingerprint: absent if any
// dependency value's own signature is absent (an unbuilt, un-adoptable
// dependency can't be hashed into anything meaningful).
func (n *Node) Signature() (aqlsig.Signature, error) {
	if n.sigComputed {
		return n.signature, nil
	}
	if err := n.UpdateDepValues(); err != nil {
		return nil, err
	}
	sources, err := n.SourceValues()
	if err != nil {
		return nil, err
	}

	for _, dep := range n.DepValues() {
		if !dep.Signature().Present() {
			n.signature = nil
			n.sigComputed = true
			return nil, nil
		}
	}

	depParts := make(aqlsig.Sequence, 0, len(n.DepValues()))
	for _, dep := range n.DepValues() {
		depParts = append(depParts, aqlsig.Bytes(sigFrame(dep.Signature())))
	}
	sourceFrames := make([]string, len(sources))
	for i, s := range sources {
		sourceFrames[i] = string(sigFrame(s.Signature()))
	}

	n.signature = aqlsig.StableHash(aqlsig.Sequence{
		aqlsig.Bytes(sigFrame(n.builder.Signature())),
		depParts,
		aqlsig.Strings(sourceFrames),
	})
	n.sigComputed = true
	return n.signature, nil
}

// sigFrame prefixes sig with a presence byte so an absent signature and a
// zero-length present one never collide once embedded as a sub-value of a
// larger stable hash.
func sigFrame(sig aqlsig.Signature) []byte {
	if sig.Present() {
		return append([]byte{1}, sig...)
	}
	return []byte{0}
}

// DepValues returns the node's resolved dependency entities (builder.NodeContext).
func (n *Node) DepValues() []entity.Entity { return n.depHolder.DepValues() }

// Build resets the node's produced values and runs the builder's action.
// The builder must call AddTargets at least once; if it never does,
// TargetValues remains absent and Build returns ErrNoTargets.
//
// If the builder's Split hook decomposes this node into sub-nodes, Build
// builds each of them instead of calling the builder's own Build, and
// adopts their combined targets as this node's own - this package has no
// separate scheduler to replace the node in a larger build graph the way
// original_source/aql/nodes/aql_node.py's buildSplit assumes one exists,
// so the split is resolved locally, one level deep.
func (n *Node) Build() error {
	n.targets = nil
	n.itargets = nil
	n.ideps = nil

	if err := n.ensurePrepared(); err != nil {
		return err
	}

	subNodes, split, err := n.builder.Split(n)
	if err != nil {
		return errors.Wrap(err, "node: split")
	}
	if split {
		return n.buildSplit(subNodes)
	}

	if err := runInCwd(n.cwd, func() error {
		return n.builder.Build(n)
	}); err != nil {
		return errors.Wrap(err, "node: build")
	}
	if n.targets == nil {
		return ErrNoTargets
	}
	return nil
}

func (n *Node) buildSplit(subNodes []builder.Buildable) error {
	n.targets = []entity.Entity{}
	for _, sub := range subNodes {
		if err := sub.Build(); err != nil {
			return errors.Wrap(err, "node: build: split sub-node")
		}
		targets, err := sub.TargetValues()
		if err != nil {
			return errors.Wrap(err, "node: build: split sub-node targets")
		}
		n.targets = append(n.targets, targets...)
	}
	return nil
}

// AddTargets implements builder.Recorder: it is additive, so a builder
// may call it more than once per Build, and the first call transitions
// TargetValues from absent to a (possibly empty) populated slice.
func (n *Node) AddTargets(targets, sideEffects, implicitDeps []any, tags []string) error {
	targetEntities, err := makeValues(n.builder, targets, false, tags)
	if err != nil {
		return errors.Wrap(err, "node: add_targets: targets")
	}
	itargetEntities, err := makeValues(n.builder, sideEffects, false, nil)
	if err != nil {
		return errors.Wrap(err, "node: add_targets: side effects")
	}
	idepEntities, err := makeValues(n.builder, implicitDeps, true, nil)
	if err != nil {
		return errors.Wrap(err, "node: add_targets: implicit deps")
	}

	if n.targets == nil {
		n.targets = []entity.Entity{}
	}
	n.targets = append(n.targets, targetEntities...)
	n.itargets = append(n.itargets, itargetEntities...)
	n.ideps = append(n.ideps, idepEntities...)
	return nil
}

func makeValues(b builder.Builder, raws []any, useCache bool, tags []string) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(raws))
	for _, raw := range raws {
		if e, ok := raw.(entity.Entity); ok {
			out = append(out, e)
			continue
		}
		e, err := b.MakeValue(raw, useCache, tags)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// IsActual checks the node's current (name, signature) against store and,
// on a hit, adopts the cached targets/itargets so a subsequent
// TargetValues call succeeds without a Build.
// built optionally tightens the check to only the names in this run's
// built set (spec.md §4.E step 5b); pass nil to disable that tightening.
// sink receives DataFileOutOfSync if store reads come back corrupted; pass
// nil to skip that reporting.
func (n *Node) IsActual(store stale.Store, built stale.BuiltSet, sink event.Sink) (bool, error) {
	name, err := n.Name()
	if err != nil {
		return false, err
	}
	sig, err := n.Signature()
	if err != nil {
		return false, err
	}

	result, err := stale.Check(store, stale.Probe{Name: name, Signature: sig}, built, sink)
	if err != nil {
		return false, errors.Wrap(err, "node: is_actual")
	}
	if result.Actual {
		n.targets = result.Targets
		n.itargets = result.ITargets
	}
	return result.Actual, nil
}

// Save persists the node's built result to store. Every target,
// side-effect target, and implicit dep must already be actual; saving a
// node with a stale value anywhere in that set is a programmer error.
func (n *Node) Save(store *vfile.VFile) error {
	for _, t := range n.targets {
		if !t.IsActual() {
			return ErrUnactualValue
		}
	}
	for _, it := range n.itargets {
		if !it.IsActual() {
			return ErrUnactualValue
		}
	}
	for _, id := range n.ideps {
		if !id.IsActual() {
			return ErrUnactualValue
		}
	}

	idepKeys, err := store.AddValues(n.ideps)
	if err != nil {
		return errors.Wrap(err, "node: save: persisting implicit deps")
	}

	name, err := n.Name()
	if err != nil {
		return err
	}
	sig, err := n.Signature()
	if err != nil {
		return err
	}

	return store.SaveNodeValue(vfile.NodeValue{
		Name: name, Signature: sig, Targets: n.targets, ITargets: n.itargets, IDepKeys: idepKeys,
	})
}

// Clear discards the node's cached result: it adopts the last stored
// targets (if any), removes their backing files, deletes the VFile
// record, and runs the builder's custom cleanup hook.
func (n *Node) Clear(store *vfile.VFile) error {
	name, err := n.Name()
	if err != nil {
		return err
	}
	stored, ok, err := store.FindNodeValue(name)
	if err != nil {
		return errors.Wrap(err, "node: clear: looking up node value")
	}
	if ok {
		n.targets = stored.Targets
		n.itargets = stored.ITargets
	}

	for _, t := range n.targets {
		t.Remove()
	}
	for _, it := range n.itargets {
		it.Remove()
	}

	if err := store.RemoveNodeValue(name); err != nil {
		return errors.Wrap(err, "node: clear: removing node value")
	}

	if err := n.ensurePrepared(); err != nil {
		return err
	}
	return runInCwd(n.cwd, func() error {
		return n.builder.Clear(n)
	})
}

// GetBuildStrArgs exposes the builder's human-readable status line parts
// for the buildstr package to format.
func (n *Node) GetBuildStrArgs(brief bool) (name, sources, targets []string) {
	return n.builder.GetBuildStrArgs(n, brief)
}
