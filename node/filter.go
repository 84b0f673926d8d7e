package node

import "github.com/aqualid/aqlbuild/entity"

// TargetsFilter narrows another node's targets to those carrying at least
// one of Tags, the way a compile node picks only the ".o" targets out of a
// source-generation node that also produced a listing file. Constructed
// with Node.At.
type TargetsFilter struct {
	Node *Node
	Tags []string
}

// At returns a TargetsFilter selecting n's targets tagged with any of tags.
func (n *Node) At(tags ...string) TargetsFilter {
	return TargetsFilter{Node: n, Tags: tags}
}

func (f TargetsFilter) resolve() ([]entity.Entity, error) {
	targets, err := f.Node.TargetValues()
	if err != nil {
		return nil, err
	}
	if len(f.Tags) == 0 {
		return nil, nil
	}
	want := toTagSet(f.Tags)
	out := make([]entity.Entity, 0, len(targets))
	for _, t := range targets {
		if t.HasAnyTag(want) {
			out = append(out, t)
		}
	}
	return out, nil
}

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
