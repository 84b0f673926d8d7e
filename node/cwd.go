package node

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// cwdMu serializes every cwd-sensitive builder call across the whole
// process. A node's working directory is a process-global resource
// (os.Chdir has no per-goroutine scope), so two nodes with different Cwd
// values must never run their builder hooks concurrently; this single
// mutex is the engine's answer to that, rather than threading an explicit
// cwd argument through every builder call the teacher's equivalents take
// relative paths for granted on.
var cwdMu sync.Mutex

// runInCwd invokes fn with the process working directory set to dir for
// the duration of the call, then restores the previous directory
// regardless of outcome. Pass "" to run fn without changing directory.
func runInCwd(dir string, fn func() error) error {
	if dir == "" {
		return fn()
	}

	cwdMu.Lock()
	defer cwdMu.Unlock()

	prev, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "node: reading current directory")
	}
	if err := os.Chdir(dir); err != nil {
		return errors.Wrapf(err, "node: changing directory to %s", dir)
	}
	defer os.Chdir(prev) //nolint:errcheck // best-effort restore

	return fn()
}
