package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Discovery failures.
var (
	ErrProvidedPathIsNotDir = errors.New("provided path is not a directory")
	ErrProvidedPathIsSuite  = errors.New("provided path is itself a suite (use --suite)")
)

// Discover returns the suite directories directly under dir, sorted by
// path. A subdirectory is a suite when it holds a project descriptor.
func Discover(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("read suites directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q: %w", dir, ErrProvidedPathIsNotDir)
	}
	if IsProject(dir) {
		return nil, fmt.Errorf("%q: %w", dir, ErrProvidedPathIsSuite)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read suites directory %q: %w", dir, err)
	}

	var suites []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// Follow symlinks so linked suites are picked up.
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if IsProject(path) {
			suites = append(suites, path)
		}
	}
	sort.Strings(suites)
	return suites, nil
}
