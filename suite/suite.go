// Package suite models a suite directory: a small self-contained program
// with its project descriptor, compile targets and declared expectations.
package suite

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Well-known suite file names.
const (
	ProjectFile     = "elm.json"
	TargetsFile     = "targets.txt"
	ExpectationFile = "output.json"
	CacheDir        = "elm-stuff"
	DefaultTarget   = "Main.elm"
)

// Structural validation failures.
var (
	ErrNotExist   = errors.New("suite directory does not exist")
	ErrNotDir     = errors.New("suite path is not a directory")
	ErrNotProject = errors.New("suite directory is not an Elm application or package")
)

// ValidationError reports a suite that cannot be processed at all.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("suite %q: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Suite is a validated suite directory.
type Suite struct {
	// Path is the absolute suite directory.
	Path string
	// Name is the directory base name, used in artifact and report names.
	Name string
}

// Open validates path as a suite directory.
// Returns a *ValidationError wrapping ErrNotExist, ErrNotDir or
// ErrNotProject when the directory is structurally unusable.
func Open(path string) (*Suite, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ValidationError{Path: path, Err: err}
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &ValidationError{Path: path, Err: ErrNotExist}
	case err != nil:
		return nil, &ValidationError{Path: path, Err: err}
	case !info.IsDir():
		return nil, &ValidationError{Path: path, Err: ErrNotDir}
	}

	if !IsProject(abs) {
		return nil, &ValidationError{Path: path, Err: ErrNotProject}
	}

	return &Suite{Path: abs, Name: filepath.Base(abs)}, nil
}

// IsProject reports whether dir contains a project descriptor.
func IsProject(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ProjectFile))
	return err == nil && !info.IsDir()
}

// Targets returns the root source files to compile, one per non-blank
// line of targets.txt, or DefaultTarget when the file is absent.
func (s *Suite) Targets() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.Path, TargetsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{DefaultTarget}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", TargetsFile, err)
	}

	var targets []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			targets = append(targets, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", TargetsFile, err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%s lists no targets", TargetsFile)
	}
	return targets, nil
}

// CachePath returns the compiler cache directory of the suite.
func (s *Suite) CachePath() string {
	return filepath.Join(s.Path, CacheDir)
}
