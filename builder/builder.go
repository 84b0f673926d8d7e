// Package builder declares the external interfaces Node and BatchNode
// build against: the action provider (Builder), and the source-registration
// callbacks a Builder implementation uses to report back to the node that
// invoked it.
//
// This mirrors the shape of the teacher's old types.go (ImageSource /
// ImageDestination / Image): a small set of narrow interfaces at the seam
// between "the generic engine" and "one concrete implementation",
// documented primarily through doc comments rather than runtime
// enforcement.
package builder

import (
	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/entity"
)

// Recorder is the callback surface Node exposes to a Builder during Build:
// the only way a builder reports what it produced and consumed.
type Recorder interface {
	// AddTargets registers raw produced values as targets (consumed by
	// downstream nodes), side-effect targets (itargets: real outputs,
	// tracked for staleness and cleanup, invisible to sources), and
	// implicit deps (ideps: discovered during the build, e.g. scanned
	// #include headers) in one call. tags are passed to MakeValue for every
	// raw target in this call, not for itargets/ideps; a target that is
	// already an entity.Entity is kept as is, with its own tags.
	AddTargets(targets, sideEffects, implicitDeps []any, tags []string) error
}

// SourceRecorder is BatchNode's per-source analogue of Recorder: a builder
// processing a BatchNode must call AddSourceTargets once per source in
// BatchNode.ChangedSourceValues, never AddTargets.
type SourceRecorder interface {
	AddSourceTargets(source entity.Entity, targets, sideEffects, implicitDeps []any, tags []string) error
}

// NodeContext is the read side of a node a Builder consumes: enough to
// resolve sources, compute identity, and run the action, without exposing
// Node's mutable internals.
type NodeContext interface {
	Recorder
	Cwd() string
	SourceValues() ([]entity.Entity, error)
	DepValues() []entity.Entity
}

// BatchNodeContext is the batch analogue of NodeContext.
type BatchNodeContext interface {
	SourceRecorder
	Cwd() string
	ChangedSourceValues() []entity.Entity
	DepValues() []entity.Entity
}

// Buildable is the subset of *node.Node that a Split result must support
// so the splitting node can actually build its replacements: Split can't
// return *node.Node directly (builder sits below node in the import graph),
// so it returns this instead. *node.Node satisfies it with no extra code.
type Buildable interface {
	NodeContext
	Build() error
	TargetValues() ([]entity.Entity, error)
}

// Builder is the external action provider a Node/BatchNode delegates to.
// Every method that isn't essential to staleness (Initiate, Depends,
// Replace, Split, Clear, GetTargetValues) is optional: a Builder
// implementation may leave it as a no-op returning the zero value, and the
// node treats that exactly as "this hook declined to act".
type Builder interface {
	// Name and Signature contribute to node identity and input
	// fingerprint (spec.md §3's Node.name / Node.signature derivation).
	Name() string
	Signature() aqlsig.Signature

	// Initiate is a pre-build hook, run with the node's Cwd active; it may
	// return a more specialized Builder to use for the rest of this node's
	// lifecycle (e.g. one that has resolved a compiler version). Returning
	// (nil, nil) means "keep the current builder unchanged".
	Initiate() (Builder, error)

	// MakeValue canonicalizes a raw source value (anything a user wrote as
	// a Node source that isn't already a Node/NodeTargetsFilter/Entity)
	// into an Entity. useCache is true only when the caller may share the
	// resulting entity across nodes (raw sources and implicit deps); a
	// Builder that has no use for caching may ignore it.
	MakeValue(raw any, useCache bool, tags []string) (entity.Entity, error)

	// MakeFileValue is like MakeValue but is required to return a file
	// entity (one of FileChecksumEntity/FilePartChecksumEntity/
	// FileTimestampEntity/DirEntity).
	MakeFileValue(raw any, useCache bool, tags []string) (entity.Entity, error)

	// GetTargetValues optionally declares a node's targets before Build
	// runs, enabling name-by-target identity instead of hashing sources.
	// Returning (nil, false) means "not known in advance".
	GetTargetValues(node NodeContext) ([]entity.Entity, bool, error)

	// Build runs the action. It must call node.AddTargets at least once.
	Build(node NodeContext) error

	// BuildBatch is Build's per-source-batch analogue: it must call
	// node.AddSourceTargets for every source in node.ChangedSourceValues.
	BuildBatch(node BatchNodeContext) error

	// Depends optionally injects extra dependency entities before the
	// node's signature is hashed. Returning (nil, false) means "no extra
	// deps".
	Depends(node NodeContext) ([]entity.Entity, bool, error)

	// Replace optionally rewrites a node's sources as a last chance before
	// resolution. Returning (nil, false) means "use sources as declared".
	Replace(node NodeContext) ([]any, bool, error)

	// Split optionally decomposes a node into sub-nodes that get built in
	// this node's place: when it returns ok, Node.Build builds each
	// returned Buildable and adopts their combined targets as its own,
	// instead of calling Build itself. Returning (nil, false) means "do
	// not split".
	Split(node NodeContext) ([]Buildable, bool, error)

	// Clear runs custom cleanup when a node's cached result is discarded.
	Clear(node NodeContext) error

	// GetBuildStrArgs returns the three parts buildstr.Build composes into
	// a human-readable status line: (name part, sources part, targets
	// part). brief requests the truncated/abbreviated form.
	GetBuildStrArgs(node NodeContext, brief bool) (name, sources, targets []string)
}
