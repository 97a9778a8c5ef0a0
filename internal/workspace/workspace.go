// Package workspace owns the scoped temp directory that holds transient
// artifacts such as palette images and preview frames.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Workspace is one session's temp directory
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// New creates root/jifmaker-<uuid>. An empty root uses os.TempDir().
func New(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	dir := filepath.Join(root, "jifmaker-"+uuid.New().String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

const runDirPrefix = "run-"

// RunDir creates a private subdirectory for one pipeline run so concurrent
// runs never share a palette path
func (w *Workspace) RunDir() (string, error) {
	dir := filepath.Join(w.dir, runDirPrefix+uuid.New().String())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return dir, nil
}

// RunDirPlaceholder is the path shown for a run directory that does not exist
// yet. Each run gets its own ID in place of "<run-id>".
func (w *Workspace) RunDirPlaceholder() string {
	return filepath.Join(w.dir, runDirPrefix+"<run-id>")
}

// Close removes the workspace and everything in it. Safe to call more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.dir)
	})
	return w.err
}
