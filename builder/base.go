package builder

import "github.com/aqualid/aqlbuild/entity"

// Base is embeddable by a concrete Builder to get every optional hook as a
// no-op, so implementations only need to override Name, Signature, Build
// (or BuildBatch), and the MakeValue pair.
type Base struct{}

func (Base) Initiate() (Builder, error) { return nil, nil }

func (Base) GetTargetValues(NodeContext) ([]entity.Entity, bool, error) { return nil, false, nil }

func (Base) BuildBatch(BatchNodeContext) error { return errNotImplemented("BuildBatch") }

func (Base) Depends(NodeContext) ([]entity.Entity, bool, error) { return nil, false, nil }

func (Base) Replace(NodeContext) ([]any, bool, error) { return nil, false, nil }

func (Base) Split(NodeContext) ([]Buildable, bool, error) { return nil, false, nil }

func (Base) Clear(NodeContext) error { return nil }

func (Base) GetBuildStrArgs(node NodeContext, _ bool) (name, sources, targets []string) {
	return nil, nil, nil
}

type errNotImplemented string

func (e errNotImplemented) Error() string {
	return "builder: " + string(e) + " not implemented"
}
