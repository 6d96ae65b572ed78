package engine

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/codeindex/internal/errors"
)

// fileLock guards the index directory against a second writer process.
// The catalog, vector index, and inverted index files are exclusively
// owned by the process holding this lock.
type fileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newFileLock(path string) *fileLock {
	return &fileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// tryLock attempts a non-blocking exclusive acquisition.
func (l *fileLock) tryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.IOError("failed to create lock directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return errors.New(errors.ErrCodeLockFailed, "failed to acquire index lock", err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeLockFailed, "index is locked by another process", nil)
	}

	l.locked = true
	return nil
}

// unlock releases the lock. Safe to call when not held.
func (l *fileLock) unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return errors.New(errors.ErrCodeLockFailed, "failed to release index lock", err)
	}
	return nil
}
