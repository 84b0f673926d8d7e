package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// manifest is the demo's build-graph description: a flat list of copy
// steps. A real front-end would construct Nodes programmatically (per
// spec.md's explicit "front-end that constructs nodes" Non-goal); this
// file exists only so the demo binary has something to read.
type manifest struct {
	Steps []step `yaml:"steps"`
}

type step struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

func loadManifest(path string) (manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, errors.Wrapf(err, "reading manifest %s", path)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return manifest{}, errors.Wrapf(err, "parsing manifest %s", path)
	}
	return m, nil
}
