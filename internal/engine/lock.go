package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// runLock is an advisory lock that keeps two runs from writing into the same
// output directory at once.
type runLock struct {
	fl *flock.Flock
}

// acquireRunLock takes the lock for outRoot without blocking. It fails with
// ErrLocked when another process holds it.
func acquireRunLock(stateDir, outRoot string) (*runLock, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	fl := flock.New(filepath.Join(stateDir, jobID(outRoot)+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, outRoot)
	}
	return &runLock{fl: fl}, nil
}

func (l *runLock) release() error {
	return l.fl.Unlock()
}

// DefaultStateDir is where journals and locks live: $XDG_RUNTIME_DIR/sortcp,
// the user cache dir, or a per-user directory under the temp dir.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "sortcp")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sortcp")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("sortcp-%d", os.Getuid()))
}
