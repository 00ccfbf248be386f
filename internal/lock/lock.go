// Package lock keeps two stickupdate runs from touching the same machine at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process holds the run lock
var ErrHeld = errors.New("another stickupdate run is in progress")

// Acquire takes an exclusive, non-blocking lock on path. The caller must
// Release the returned handle.
func Acquire(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock file %s)", ErrHeld, path)
	}
	return fl, nil
}

// Release unlocks fl. The lock file itself is left in place.
func Release(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}
