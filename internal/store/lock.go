package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another process is writing the index.
var ErrLocked = errors.New("index is locked by another process")

// Lock is a cross-process single-writer lock stored next to the database.
// A zero-path Lock is a no-op, used by the in-memory backend.
type Lock struct {
	path  string
	flock *flock.Flock
}

// NewLock returns a lock for the database at dbPath ("" for none).
func NewLock(dbPath string) *Lock {
	if dbPath == "" {
		return &Lock{}
	}
	path := dbPath + ".lock"
	return &Lock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking, or returns ErrLocked.
func (l *Lock) TryLock() error {
	if l.flock == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (%s)", ErrLocked, l.path)
	}
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *Lock) Unlock() error {
	if l.flock == nil || !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}

// Path returns the lock file path, or "" for a no-op lock.
func (l *Lock) Path() string { return l.path }
