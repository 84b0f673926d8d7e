package node

import "github.com/pkg/errors"

// Construction errors (spec.md §7): fail fast at the site of misuse,
// always fatal to the node that raised them.
var (
	ErrInvalidDependency = errors.New("node: invalid dependency kind")
	ErrInvalidSource     = errors.New("node: invalid source kind")
)

// State errors (spec.md §7): reading a field before it's populated.
// Programmer errors; fatal.
var (
	ErrNoTargets       = errors.New("node: targets are not built or set yet")
	ErrNoSourceTargets = errors.New("node: batch source targets are not built or set yet")
	ErrUnknownSource   = errors.New("node: unknown source value for this batch node")
	ErrNotBatchMethod  = errors.New("node: AddTargets is forbidden on a batch node, use AddSourceTargets")
	ErrBatchHasNoIdentity = errors.New("node: a batch node has no single name/signature")
)

// ErrUnactualValue is the actuality invariant error (spec.md §7):
// attempting to save a target or implicit dep that is not itself actual.
var ErrUnactualValue = errors.New("node: value is not actual, cannot be saved")
