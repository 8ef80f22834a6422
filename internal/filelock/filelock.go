// Package filelock provides advisory file locking so that trackflow
// processes sharing one data directory apply mutations one at a time.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	lockFileMode = 0o600
	lockDirMode  = 0o750
)

// ErrLocked is returned by TryLock when another process holds the lock.
var ErrLocked = errors.New("lock is held by another process")

// Unlock releases a held lock.
type Unlock func() error

// Lock acquires an exclusive advisory lock on the file at path, creating it
// and its directory if needed. Other callers block until it is released.
func Lock(path string) (Unlock, error) {
	return acquire(path, true)
}

// TryLock is like Lock but fails with ErrLocked instead of waiting.
func TryLock(path string) (Unlock, error) {
	return acquire(path, false)
}

func acquire(path string, wait bool) (Unlock, error) {
	if err := os.MkdirAll(filepath.Dir(path), lockDirMode); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFileMode) //nolint:gosec // lock file path from trusted source
	if err != nil {
		return nil, err
	}

	if err := lockFile(f, wait); err != nil {
		_ = f.Close()
		return nil, err
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
