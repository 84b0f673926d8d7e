//go:build !unix

package lockfile

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// dirLocker is the portable directory-mkdir-retry strategy, a direct
// port of the Python original's GeneralFileLock: mkdir is atomic on
// every filesystem Go targets, so "mkdir succeeds" is the lock, and
// "mkdir fails with already-exists" is contention to retry past.
type dirLocker struct {
	path     string
	interval time.Duration
	retries  int
}

func newLocker(path string, opts Options) locker {
	return &dirLocker{path: path + ".lock", interval: opts.Interval, retries: opts.Retries}
}

func (l *dirLocker) lock(bool) error {
	remaining := l.retries
	for {
		err := os.Mkdir(l.path, 0o700)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return errors.Wrapf(err, "lockfile: creating %s", l.path)
		}
		if remaining == 0 {
			return ErrTimeout
		}
		if remaining > 0 {
			remaining--
		}
		time.Sleep(l.interval)
	}
}

func (l *dirLocker) unlock() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "lockfile: removing %s", l.path)
	}
	return nil
}

func (l *dirLocker) close() error { return nil }
