// Command aqlbuild is a thin end-to-end demo wiring every package
// together: it reads a YAML manifest of copy steps, opens a VFile under
// a FileLock, and runs each step's Node through IsActual/Build/Save,
// printing a buildstr status line for each - the fresh-build and
// cache-hit scenarios from spec.md §8, exercised against real files
// instead of a test fixture.
//
// The flag-based CLI here uses only the standard library: no CLI
// framework is part of the dependency set this module carries (the
// teacher's only CLI surface, pkg/cli, was registry/image specific and
// dropped along with the rest of the image/registry code - see
// DESIGN.md), and a three-flag demo binary doesn't warrant adopting one.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/aqualid/aqlbuild/aqlconfig"
	"github.com/aqualid/aqlbuild/buildstr"
	"github.com/aqualid/aqlbuild/event"
	"github.com/aqualid/aqlbuild/lockfile"
	"github.com/aqualid/aqlbuild/node"
	"github.com/aqualid/aqlbuild/vfile"
)

func main() {
	manifestPath := flag.String("manifest", "aqlbuild.yaml", "path to the build manifest")
	configPath := flag.String("config", "aql.toml", "path to the engine config file")
	brief := flag.Bool("brief", true, "use brief status lines")
	flag.Parse()

	if err := run(*manifestPath, *configPath, *brief); err != nil {
		fmt.Fprintln(os.Stderr, "aqlbuild:", err)
		os.Exit(1)
	}
}

func run(manifestPath, configPath string, brief bool) error {
	cfg := aqlconfig.Default()
	if loaded, err := aqlconfig.Load(configPath); err == nil {
		cfg = loaded
	}

	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	lock := lockfile.New(cfg.VFilePath, lockfile.Options{
		Interval: cfg.Lock.Interval(),
		Retries:  cfg.Lock.Retries,
	})
	if err := lock.WriteLock(); err != nil {
		return err
	}
	defer lock.Close()

	vf, err := vfile.Open(cfg.VFilePath)
	if err != nil {
		return err
	}
	defer vf.Close()

	bus := event.NewBus(logrus.StandardLogger())
	bus.Subscribe(event.NewLogrusSink(nil))

	for _, s := range m.Steps {
		b := &copyBuilder{sourcePath: s.Source, targetPath: s.Target}
		n := node.New(b, "", s.Source)

		actual, err := n.IsActual(vf, nil, bus)
		if err != nil {
			return err
		}
		if actual {
			fmt.Println("cached:", buildstr.Build(n, brief))
			continue
		}

		bus.OutdatedNode(s.Name)
		if err := n.Build(); err != nil {
			return err
		}
		if err := n.Save(vf); err != nil {
			return err
		}
		fmt.Println("built: ", buildstr.Build(n, brief))
	}

	return nil
}
