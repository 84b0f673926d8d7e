// Package stale implements the staleness protocol (spec.md §4.E): the
// single algorithm, shared by Node and BatchNode, that decides whether a
// cached NodeValue is still valid given the current VFile and a probe
// (name, signature) pair.
//
// Grounded directly on original_source/aql/nodes/aql_node.py's
// _actualDeps/_actualValues helpers: implicit deps are validated before
// targets, and a changed idep is repaired in place (vfile.replaceValue)
// before the node is reported stale, so the next run's cache already
// reflects reality without paying for re-discovery twice.
//
// spec.md §7 requires that suspected VFile corruption be reported and
// treated as staleness rather than crash the build: a Store method
// returning an error here - a bolt read failing, a record that won't
// decode - is exactly that case, distinct from a legitimate "not found"
// (ok=false), which is never itself corruption.
package stale

import (
	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/entity"
	"github.com/aqualid/aqlbuild/event"
	"github.com/aqualid/aqlbuild/vfile"
	"github.com/pkg/errors"
)

// Probe is the (name, signature) pair being checked for actuality.
type Probe struct {
	Name      string
	Signature aqlsig.Signature
}

// Result carries the verdict plus, on a hit, the cached targets the caller
// should adopt.
type Result struct {
	Actual   bool
	Targets  []entity.Entity
	ITargets []entity.Entity
}

// Store is the subset of *vfile.VFile the protocol needs; declared here so
// stale can be tested against a fake without depending on bolt at all.
type Store interface {
	FindNodeValue(name string) (vfile.NodeValue, bool, error)
	GetValues(keys []vfile.Key) ([]entity.Entity, bool, error)
	ReplaceValue(key vfile.Key, e entity.Entity) error
}

// BuiltSet optionally tightens the check: even if the cache says actual, a
// node whose name is outside BuiltSet is considered stale by the caller.
// A nil BuiltSet disables this tightening.
type BuiltSet map[string]struct{}

// Check runs the six-step algorithm from spec.md §4.E against store for a
// single probe. sink, if non-nil, receives DataFileOutOfSync whenever a
// Store method itself fails - that failure is reported as stale rather
// than returned as an error, so a corrupted VFile forces a rebuild instead
// of crashing the build.
func Check(store Store, probe Probe, built BuiltSet, sink event.Sink) (Result, error) {
	// Step 1: a node whose inputs we cannot hash is always rebuilt.
	if !probe.Signature.Present() {
		return Result{Actual: false}, nil
	}

	// Step 2: never built.
	stored, ok, err := store.FindNodeValue(probe.Name)
	if err != nil {
		notifyCorrupt(sink)
		return Result{Actual: false}, nil
	}
	if !ok || !stored.Truthy() {
		return Result{Actual: false}, nil
	}

	// Step 3: inputs changed.
	if !stored.Signature.Equal(probe.Signature) {
		return Result{Actual: false}, nil
	}

	// Step 4: implicit deps, validated before targets (a header change
	// invalidates object files without changing the object file's own
	// on-disk bytes - the input set expanded, not the output).
	if len(stored.IDepKeys) > 0 {
		ideps, ok, err := store.GetValues(stored.IDepKeys)
		if err != nil {
			notifyCorrupt(sink)
			return Result{Actual: false}, nil
		}
		if !ok {
			return Result{Actual: false}, nil
		}
		for i, idep := range ideps {
			if !idep.Signature().Present() {
				// A falsy stored value (e.g. a NullEntity placeholder with
				// no known content) can never be validated - stale.
				return Result{Actual: false}, nil
			}
			actual, err := idep.GetActual()
			if err != nil {
				return Result{}, errors.Wrap(err, "stale: refreshing implicit dep")
			}
			if !actual.Equal(idep) {
				if err := store.ReplaceValue(stored.IDepKeys[i], actual); err != nil {
					notifyCorrupt(sink)
					return Result{Actual: false}, nil
				}
				return Result{Actual: false}, nil
			}
		}
	}

	// Step 5: target actuality.
	for _, target := range stored.Targets {
		if !target.IsActual() {
			return Result{Actual: false}, nil
		}
	}
	for _, itarget := range stored.ITargets {
		if !itarget.IsActual() {
			return Result{Actual: false}, nil
		}
	}

	// Optional built_set tightening.
	if built != nil {
		if _, ok := built[probe.Name]; !ok {
			return Result{Actual: false}, nil
		}
	}

	// Step 6: adopt the cached targets.
	return Result{Actual: true, Targets: stored.Targets, ITargets: stored.ITargets}, nil
}

func notifyCorrupt(sink event.Sink) {
	if sink != nil {
		sink.DataFileOutOfSync()
	}
}
