//go:build unix

package lockfile

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// flockLocker holds an advisory BSD lock (flock(2), via x/sys/unix) on a
// sidecar "<path>.lock" file, the same strategy the Python original's
// UnixFileLock uses via fcntl.lockf. flock(2) is a range lock on the
// whole file by default, which is all this package needs.
type flockLocker struct {
	path string
	fd   int
}

func newLocker(path string, _ Options) locker {
	return &flockLocker{path: path + ".lock", fd: -1}
}

func (l *flockLocker) ensureOpen() error {
	if l.fd != -1 {
		return nil
	}
	fd, err := unix.Open(l.path, unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		return errors.Wrapf(err, "lockfile: opening %s", l.path)
	}
	l.fd = fd
	return nil
}

func (l *flockLocker) lock(exclusive bool) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(l.fd, how); err != nil {
		return errors.Wrapf(err, "lockfile: flock %s", l.path)
	}
	return nil
}

func (l *flockLocker) unlock() error {
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		return errors.Wrapf(err, "lockfile: unflock %s", l.path)
	}
	return nil
}

func (l *flockLocker) close() error {
	if l.fd == -1 {
		return nil
	}
	fd := l.fd
	l.fd = -1
	err := unix.Close(fd)
	return errors.Wrapf(err, "lockfile: closing %s", l.path)
}
