// Package lockfile implements the FileLock contract (spec.md §6): scoped
// read/write acquisition of an exclusive lock keyed by a path, used to
// serialize concurrent VFile access across process boundaries (workers
// in separate processes, not just separate goroutines within one).
//
// Grounded on original_source/aql/utils/aql_lock_file.py, which picks an
// OS-specific strategy at import time (fcntl on Unix, LockFileEx on
// Windows, a plain directory-mkdir retry loop everywhere else) behind one
// FileLock name. Go expresses that selection with build-tagged files
// instead of a try/except import chain: lockfile_unix.go supplies the
// unix.Flock-based locker, lockfile_fallback.go the portable
// directory-based one.
package lockfile

import (
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyLocked is returned by WriteLock/ReadLock when the FileLock
// value already holds a lock.
var ErrAlreadyLocked = errors.New("lockfile: already locked")

// ErrNotLocked is returned by Release when the FileLock value does not
// currently hold a lock.
var ErrNotLocked = errors.New("lockfile: not locked")

// ErrTimeout is returned when a lock could not be acquired within the
// configured retry budget (the directory-based fallback only; the
// unix.Flock strategy blocks indefinitely, matching flock(2) semantics).
var ErrTimeout = errors.New("lockfile: timed out waiting for lock")

// Options configures the directory-based fallback locker's retry
// behavior (original_source/aql_lock_file.py's GeneralFileLock
// constructor args, made a first-class, overridable struct per
// SPEC_FULL.md's supplemented-features list).
type Options struct {
	// Interval is how long to sleep between acquisition attempts.
	Interval time.Duration
	// Retries is how many times to retry before giving up. Zero means
	// DefaultOptions' value, not "try once and give up" - use -1 to retry
	// indefinitely, blocking the way the unix.Flock strategy does.
	Retries int
}

// DefaultOptions mirrors the Python original's defaults: a 250ms poll
// interval and a five-minute overall timeout.
func DefaultOptions() Options {
	return Options{Interval: 250 * time.Millisecond, Retries: (5 * 60 * 1000) / 250}
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultOptions().Interval
	}
	if o.Retries == 0 {
		o.Retries = DefaultOptions().Retries
	}
	return o
}

// FileLock is a scoped handle for one lockable path. It is not safe for
// concurrent use by multiple goroutines; callers needing in-process
// fan-out must serialize their own WriteLock/ReadLock/Release calls (the
// lock itself only protects against other processes and other
// FileLock values).
type FileLock struct {
	locker locker
	locked bool
	shared bool
}

// locker is the OS-specific strategy FileLock delegates to; see
// lockfile_unix.go and lockfile_fallback.go.
type locker interface {
	lock(exclusive bool) error
	unlock() error
	close() error
}

// New returns a FileLock for path. No filesystem work happens until
// ReadLock or WriteLock is called.
func New(path string, opts Options) *FileLock {
	return &FileLock{locker: newLocker(path, opts.withDefaults())}
}

// WriteLock acquires an exclusive lock, blocking (or retrying, for the
// fallback strategy) until it succeeds or the configured retry budget is
// exhausted.
func (f *FileLock) WriteLock() error {
	if f.locked {
		return ErrAlreadyLocked
	}
	if err := f.locker.lock(true); err != nil {
		return err
	}
	f.locked, f.shared = true, false
	return nil
}

// ReadLock acquires a shared lock. The directory-based fallback has no
// concept of shared locks and treats ReadLock identically to WriteLock,
// matching the Python original's GeneralFileLock.readLock, which is
// simply an alias for writeLock.
func (f *FileLock) ReadLock() error {
	if f.locked {
		return ErrAlreadyLocked
	}
	if err := f.locker.lock(false); err != nil {
		return err
	}
	f.locked, f.shared = true, true
	return nil
}

// Release releases the held lock.
func (f *FileLock) Release() error {
	if !f.locked {
		return ErrNotLocked
	}
	if err := f.locker.unlock(); err != nil {
		return err
	}
	f.locked = false
	return nil
}

// Close releases any OS resources (open file descriptors) held by the
// lock, releasing the lock first if still held.
func (f *FileLock) Close() error {
	if f.locked {
		if err := f.Release(); err != nil {
			return err
		}
	}
	return f.locker.close()
}
