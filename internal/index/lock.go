package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// LockFileName is the corpus-wide writer lock inside the data directory.
const LockFileName = "index.lock"

// DefaultLockRetry is the polling interval while waiting for the lock.
const DefaultLockRetry = 100 * time.Millisecond

// FileLock provides cross-process locking using gofrs/flock. Only one
// process writes the store and ledger at a time.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock at path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// LockContext blocks until the lock is acquired or ctx is done. A
// context error is returned unchanged; a busy lock at deadline is
// ErrCodeIndexBusy.
func (l *FileLock) LockContext(ctx context.Context, retry time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if retry <= 0 {
		retry = DefaultLockRetry
	}

	acquired, err := l.flock.TryLockContext(ctx, retry)
	if err != nil {
		if ctx.Err() != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return docserrors.New(docserrors.ErrCodeIndexBusy, "index is locked by another writer", ctx.Err())
			}
			return ctx.Err()
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return docserrors.New(docserrors.ErrCodeIndexBusy, "index is locked by another writer", nil)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked reports whether this handle holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
