package fileutil

import (
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// ErrWouldBlock is returned (wrapped) by LockExclusive when another open file
// description already holds the lock.
var ErrWouldBlock = xerrors.New("lock is held by another process")

// Lock is an exclusive advisory flock(2) on a file. The lock is tied to the
// open file description, so it is released by the kernel when the process
// exits, even on crash.
type Lock struct {
	f *os.File
}

// LockExclusive creates (or opens) path and takes an exclusive whole-file
// lock in non-blocking mode. If the lock is held elsewhere, the returned error
// wraps ErrWouldBlock; callers which need to wait must retry.
//
// Release the lock with a deferred call to Release.
func LockExclusive(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|unix.O_CLOEXEC, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, xerrors.Errorf("flock(%s): %w", path, ErrWouldBlock)
		}
		return nil, xerrors.Errorf("flock(%s): %w", path, err)
	}
	return &Lock{f: f}, nil
}

// WaitExclusive retries LockExclusive up to attempts times, doubling delay
// (capped at 5s) after each failure. Errors other than ErrWouldBlock are
// returned immediately.
func WaitExclusive(path string, attempts int, delay time.Duration) (*Lock, error) {
	const maxDelay = 5 * time.Second
	for attempt := 1; ; attempt++ {
		l, err := LockExclusive(path)
		if err == nil {
			return l, nil
		}
		if !xerrors.Is(err, ErrWouldBlock) || attempt >= attempts {
			return nil, err
		}
		if attempt == 1 {
			log.Printf("waiting for lock %s", path)
		}
		time.Sleep(delay)
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}
	}
}

// Path returns the path of the lock file.
func (l *Lock) Path() string {
	if l == nil || l.f == nil {
		return ""
	}
	return l.f.Name()
}

// Release unlocks and closes the lock file. Failures are logged, not
// returned. Calling Release more than once is a no-op.
func (l *Lock) Release() {
	if l == nil || l.f == nil {
		return
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		log.Printf("unlocking %s: %v", l.f.Name(), err)
	}
	if err := l.f.Close(); err != nil {
		log.Printf("closing %s: %v", l.f.Name(), err)
	}
	l.f = nil
}

// WithExclusive runs fn while holding an exclusive lock on path. The lock is
// released on every exit path of fn, including panics.
func WithExclusive(path string, fn func() error) error {
	l, err := LockExclusive(path)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
