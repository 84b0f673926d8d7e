package node

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/aqualid/aqlbuild/entity"
)

// depHolder is the shared "extra dependency" bookkeeping Node and
// BatchNode both need: a Depends call may reference another node whose
// targets aren't built yet, so raw dep sources are kept separately from
// resolved dep_values until UpdateDepValues folds them in, at which point
// dep_values is kept sorted by name so a node's signature never depends
// on the order callers happened to declare dependencies in.
type depHolder struct {
	depSources []any // *Node or TargetsFilter, not yet resolved
	depValues  []entity.Entity
}

// Depends records extra dependency sources: a *Node, a TargetsFilter, or
// an entity.Entity. Entities are folded into dep_values immediately since
// they need no later resolution; Node/TargetsFilter sources wait for
// UpdateDepValues so they can be declared before the referenced node has
// built.
func (d *depHolder) Depends(extra ...any) error {
	for _, item := range extra {
		switch v := item.(type) {
		case *Node, TargetsFilter:
			d.depSources = append(d.depSources, v)
		case entity.Entity:
			d.depValues = append(d.depValues, v)
		default:
			return ErrInvalidDependency
		}
	}
	d.sortDepValues()
	return nil
}

// UpdateDepValues resolves every pending dep source into dep_values and
// clears the pending list; safe to call repeatedly (e.g. once per
// Signature() call) since an empty pending list is a no-op.
func (d *depHolder) UpdateDepValues() error {
	if len(d.depSources) == 0 {
		return nil
	}
	pending := d.depSources
	d.depSources = nil

	for _, item := range pending {
		var (
			resolved []entity.Entity
			err      error
		)
		switch v := item.(type) {
		case *Node:
			resolved, err = v.TargetValues()
		case TargetsFilter:
			resolved, err = v.resolve()
		}
		if err != nil {
			return err
		}
		d.depValues = append(d.depValues, resolved...)
	}
	d.sortDepValues()
	return nil
}

func (d *depHolder) sortDepValues() {
	slices.SortFunc(d.depValues, func(a, b entity.Entity) int {
		return strings.Compare(a.Name(), b.Name())
	})
}

// DepValues returns the resolved dependency entities, sorted by name.
// Callers that need UpdateDepValues's pending sources folded in first
// must call it before DepValues.
func (d *depHolder) DepValues() []entity.Entity { return d.depValues }
