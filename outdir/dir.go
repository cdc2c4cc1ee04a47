// Package outdir owns the directories holding compiled artifacts and
// harness files.
//
// A directory is in one of three states:
//   - Provided: owned by the caller, never created or deleted here
//   - Temporary: created here and removed by Cleanup
//   - Persistent: a promoted Temporary that Cleanup leaves on disk
//
// Promotion is one-way.
package outdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Kind is the lifecycle state of a Dir.
type Kind int

const (
	// KindProvided is a caller-owned directory.
	KindProvided Kind = iota
	// KindTemporary is deleted on Cleanup.
	KindTemporary
	// KindPersistent survives Cleanup for inspection.
	KindPersistent
)

func (k Kind) String() string {
	switch k {
	case KindProvided:
		return "provided"
	case KindTemporary:
		return "temporary"
	case KindPersistent:
		return "persistent"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Dir is an output directory. Safe for concurrent use.
type Dir struct {
	mu      sync.Mutex
	kind    Kind
	path    string
	removed bool
}

// Provided wraps a caller-owned directory. The path is made absolute but
// is not created or checked; the compile pipeline reports a path that is
// not a directory.
func Provided(path string) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory %s: %w", path, err)
	}
	return &Dir{kind: KindProvided, path: abs}, nil
}

// Temporary creates a fresh directory under root (os.TempDir when empty)
// whose name starts with prefix.
func Temporary(root, prefix string) (*Dir, error) {
	path, err := os.MkdirTemp(root, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create temporary output directory: %w", err)
	}
	return &Dir{kind: KindTemporary, path: path}, nil
}

// Path returns the absolute directory path.
func (d *Dir) Path() string {
	return d.path
}

// Kind returns the current state.
func (d *Dir) Kind() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.kind
}

// Promote turns a Temporary directory into a Persistent one. It is a
// no-op for the other states.
func (d *Dir) Promote() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kind == KindTemporary && !d.removed {
		d.kind = KindPersistent
	}
}

// Cleanup removes a Temporary directory with its contents. Provided and
// Persistent directories are left alone. Calling Cleanup more than once
// is harmless.
func (d *Dir) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.kind != KindTemporary || d.removed {
		return nil
	}
	d.removed = true
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("remove output directory %s: %w", d.path, err)
	}
	return nil
}
