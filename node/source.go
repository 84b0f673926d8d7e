package node

import (
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/entity"
)

// resolveSource turns one element of a node's source list into the
// entities it stands for: a *Node or TargetsFilter expands to (a subset
// of) that node's already-built targets, an entity.Entity passes through
// unchanged, and anything else is handed to the builder to canonicalize -
// mirroring get_source_values's "everything else goes through
// make_value(x, use_cache=true)" rule, since a raw source may be shared
// verbatim across several nodes (e.g. the same header path named as a
// source of many compile nodes).
func resolveSource(b builder.Builder, raw any) ([]entity.Entity, error) {
	switch v := raw.(type) {
	case *Node:
		return v.TargetValues()
	case TargetsFilter:
		return v.resolve()
	case entity.Entity:
		return []entity.Entity{v}, nil
	default:
		e, err := b.MakeValue(raw, true, nil)
		if err != nil {
			return nil, err
		}
		return []entity.Entity{e}, nil
	}
}

func resolveSources(b builder.Builder, raws []any) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(raws))
	for _, raw := range raws {
		resolved, err := resolveSource(b, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved...)
	}
	return out, nil
}
