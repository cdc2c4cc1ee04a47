// Package compiler resolves compiler names to executables and detects
// which compiler variant each one is.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/torture/types"
)

// Probe defaults.
const (
	DefaultProbeFlag     = "--variant"
	DefaultVariantMarker = "alternate"
)

// Resolution failures.
var (
	// ErrNotFound means the compiler could not be located on PATH.
	ErrNotFound = errors.New("compiler not found")
	// ErrProbeParsing means the variant probe succeeded but printed
	// something unrecognised.
	ErrProbeParsing = errors.New("could not parse compiler variant probe output")
)

// Handle is a resolved compiler. Handles are immutable and shared
// between every unit that names the same compiler.
type Handle struct {
	// Name is the name or path the compiler was requested by.
	Name string
	// Path is the canonical absolute path of the executable.
	Path string
	// Variant is the detected compiler family.
	Variant types.CompilerVariant
}

// ProbeResult is the raw outcome of running the variant probe.
type ProbeResult struct {
	ExitCode int
	Stdout   []byte
}

// Prober runs the variant probe against an executable.
type Prober func(ctx context.Context, path, flag string) (*ProbeResult, error)

// Config configures a Resolver.
type Config struct {
	// ProbeFlag is passed alone to the compiler to detect its variant.
	ProbeFlag string
	// VariantMarker is the stdout prefix that identifies the alternate variant.
	VariantMarker string
	// LookPath locates executables (default exec.LookPath).
	LookPath func(file string) (string, error)
	// Probe runs the probe (default: spawn the executable).
	Probe Prober
}

type entry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// Resolver memoises compiler resolution for the life of a harness run.
// Resolution happens at most once per distinct name, including failures.
type Resolver struct {
	config  Config
	mu      sync.Mutex
	entries map[string]*entry
}

// NewResolver creates a resolver, filling in defaults.
func NewResolver(cfg Config) *Resolver {
	if cfg.ProbeFlag == "" {
		cfg.ProbeFlag = DefaultProbeFlag
	}
	if cfg.VariantMarker == "" {
		cfg.VariantMarker = DefaultVariantMarker
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.Probe == nil {
		cfg.Probe = execProbe
	}
	return &Resolver{
		config:  cfg,
		entries: make(map[string]*entry),
	}
}

// Resolve returns the handle for name. Concurrent callers asking for
// the same name share a single resolution.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Handle, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok {
		e = &entry{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	// The result is shared by every caller, so one caller's cancellation
	// must not decide it.
	e.once.Do(func() {
		e.handle, e.err = r.resolve(context.WithoutCancel(ctx), name)
	})
	return e.handle, e.err
}

func (r *Resolver) resolve(ctx context.Context, name string) (*Handle, error) {
	found, err := r.config.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, name, err)
	}
	path, err := canonicalize(found)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, name, err)
	}

	res, err := r.config.Probe(ctx, path, r.config.ProbeFlag)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	variant, err := r.classify(res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return &Handle{Name: name, Path: path, Variant: variant}, nil
}

// classify maps probe output to a variant. Compilers that do not
// understand the probe flag exit non-zero and are the official variant.
func (r *Resolver) classify(res *ProbeResult) (types.CompilerVariant, error) {
	if res.ExitCode != 0 {
		return types.VariantOfficial, nil
	}
	if bytes.HasPrefix(res.Stdout, []byte(r.config.VariantMarker)) {
		return types.VariantAlternate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrProbeParsing, truncate(res.Stdout, 80))
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func execProbe(ctx context.Context, path, flag string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, path, flag)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ProbeResult{ExitCode: exitErr.ExitCode(), Stdout: stdout.Bytes()}, nil
		}
		return nil, err
	}
	return &ProbeResult{ExitCode: 0, Stdout: stdout.Bytes()}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
