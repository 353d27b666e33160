package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another dupetag run is already in progress")

type runLock struct {
	path string
	lock *flock.Flock
}

func newRunLock(path string) *runLock {
	return &runLock{path: path, lock: flock.New(path)}
}

func (l *runLock) Path() string { return l.path }

// Acquire takes the lock without blocking.
func (l *runLock) Acquire() error {
	dir := filepath.Dir(l.path)
	if err := ensureWritableDir(dir); err != nil {
		return err
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrRunInProgress, l.path)
	}
	return nil
}

func (l *runLock) Release() error {
	return l.lock.Unlock()
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("state directory %s: insufficient permissions: %w", dir, err)
	}
	return nil
}
