// Package lock provides a cross-process job lock backed by the atomic
// creation of a marker file.
//
// The marker's existence means the lock is held. A marker left behind by a
// crashed process is never reclaimed automatically; an operator has to remove
// it (see Clear).
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileName is the marker name used under a context root
const FileName = "_transcribe.lock"

// FileLock is a named exclusive resource on the local filesystem
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// New returns a lock for the marker at path. Nothing is touched on disk.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// ForContextRoot returns the transcription lock of a context root
func ForContextRoot(contextRoot string) *FileLock {
	return New(filepath.Join(contextRoot, FileName))
}

// Path returns the marker path
func (l *FileLock) Path() string {
	return l.path
}

// Acquire attempts to create the marker exclusively.
// It returns false, nil when the marker already exists. Any other error means
// the caller cannot know whether the lock was obtained.
func (l *FileLock) Acquire() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "pid=%d\n", os.Getpid()); err != nil {
		_ = f.Close()
		_ = os.Remove(l.path)
		return false, fmt.Errorf("failed to write lock file: %w", err)
	}

	l.mu.Lock()
	l.file = f
	l.mu.Unlock()

	return true, nil
}

// Release closes the handle and removes the marker. It is safe to call more
// than once and never fails on a missing marker.
func (l *FileLock) Release() {
	l.mu.Lock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	l.mu.Unlock()

	_ = os.Remove(l.path)
}

// IsHeld reports whether the marker exists. The answer may be stale by the
// time it is used.
func (l *FileLock) IsHeld() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Holder returns the liveness hint written by the holder, e.g. "pid=1234"
func (l *FileLock) Holder() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Clear removes a marker regardless of who created it. Only for operators
// recovering from a crashed run. It reports whether a marker was removed.
func Clear(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to remove lock file: %w", err)
}
