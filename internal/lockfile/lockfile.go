//go:build !windows

// Package lockfile guards against a second process polling the same bot
// identity. It takes an exclusive advisory flock on a well-known path and
// writes the holder's PID for operators to inspect.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("lockfile: another instance is already running")

// Lock is a held single-instance lock. Zero value is not usable; call
// Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire opens (creating if needed) the lock file at path and takes an
// exclusive non-blocking flock on it. On success the holder's PID replaces
// the file's contents. A held lock returns ErrAlreadyRunning.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}

	fd := int(f.Fd())
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("lockfile: flock %s: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		unix.Flock(fd, unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("lockfile: truncate %s: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		unix.Flock(fd, unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("lockfile: write pid to %s: %w", path, err)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file's location.
func (l *Lock) Path() string { return l.path }

// Release drops the flock, closes the file and removes it. Safe to call
// once per acquired lock; the file may already be gone.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	ferr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	cerr := l.file.Close()
	l.file = nil
	if rerr := os.Remove(l.path); rerr != nil && !os.IsNotExist(rerr) {
		return rerr
	}
	if ferr != nil {
		return ferr
	}
	return cerr
}
