package main

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/aqualid/aqlbuild/aqlsig"
	"github.com/aqualid/aqlbuild/builder"
	"github.com/aqualid/aqlbuild/buildstr"
	"github.com/aqualid/aqlbuild/entity"
)

// copyBuilder is the demo's only action: copy one source file to one
// target path, registering the target as the node's sole built value.
// It exists to exercise Node/VFile/stale end to end, not as a realistic
// build step.
type copyBuilder struct {
	builder.Base
	sourcePath string
	targetPath string
}

func (b *copyBuilder) Name() string { return "copy:" + b.targetPath }

func (b *copyBuilder) Signature() aqlsig.Signature { return aqlsig.Signature("copy-builder-v1") }

func (b *copyBuilder) MakeValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	return b.MakeFileValue(raw, false, tags)
}

func (b *copyBuilder) MakeFileValue(raw any, _ bool, tags []string) (entity.Entity, error) {
	path, ok := raw.(string)
	if !ok {
		return entity.Entity{}, errors.Errorf("copyBuilder: expected a path, got %T", raw)
	}
	return entity.NewFileChecksum(path, nil, tags)
}

func (b *copyBuilder) Build(n builder.NodeContext) error {
	sources, err := n.SourceValues()
	if err != nil {
		return err
	}
	if len(sources) != 1 {
		return errors.Errorf("copyBuilder: expected exactly one source, got %d", len(sources))
	}

	in, err := os.Open(sources[0].Name())
	if err != nil {
		return errors.Wrap(err, "copyBuilder: opening source")
	}
	defer in.Close()

	out, err := os.Create(b.targetPath)
	if err != nil {
		return errors.Wrap(err, "copyBuilder: creating target")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, "copyBuilder: copying")
	}

	target, err := entity.NewFileChecksum(b.targetPath, nil, nil)
	if err != nil {
		return err
	}
	return n.AddTargets([]any{target}, nil, nil, nil)
}

func (b *copyBuilder) GetBuildStrArgs(_ builder.NodeContext, brief bool) (name, sources, targets []string) {
	src, tgt := b.sourcePath, b.targetPath
	if brief {
		src, tgt = buildstr.Basename(src), buildstr.Basename(tgt)
	}
	return []string{"copy"}, []string{src}, []string{tgt}
}
