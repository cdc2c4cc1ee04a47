package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pithecene-io/torture/executor"
	"github.com/pithecene-io/torture/log"
	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/suite"
)

// Runtime defaults.
const (
	DefaultRuntime = "node"
	DefaultTimeout = 10 * time.Second
)

// DefaultRuntimeArgs makes unhandled promise rejections fatal.
var DefaultRuntimeArgs = []string{"--unhandled-rejections=strict"}

// ExpectedOutputFile is the name of the canonical expectation copy the
// harness loads from the output directory.
const ExpectedOutputFile = "output.json"

// allowedStderr lists the only stderr payloads a passing run may produce:
// the advisory line compiled programs print outside optimized builds.
var allowedStderr = [][]byte{
	advisory("DEV"),
	advisory("DEBUG"),
}

func advisory(mode string) []byte {
	return []byte("Compiled in " + mode + " mode. Follow the advice at https://elm-lang.org/0.19.1/optimize for better performance and smaller assets.\n")
}

// StderrAllowed reports whether stderr is acceptable from a passing run.
func StderrAllowed(stderr []byte) bool {
	if len(stderr) == 0 {
		return true
	}
	for _, allowed := range allowedStderr {
		if bytes.Equal(stderr, allowed) {
			return true
		}
	}
	return false
}

// RunRequest describes one execution of a compiled artifact.
type RunRequest struct {
	// OutDir is the directory holding the artifact. Harness files are
	// written here.
	OutDir string
	// Artifact is the compiled artifact's file name within OutDir.
	Artifact string
	// Entry is the generated entry script's file name within OutDir.
	Entry string
	// Expectation is the suite descriptor forwarded to the harness.
	Expectation *suite.Expectation
	// Timeout kills the program once elapsed. Zero means no limit.
	Timeout time.Duration
}

// RunPipeline executes compiled artifacts.
type RunPipeline struct {
	// Runtime is the runtime executable name or path (default "node").
	Runtime string
	// RuntimeArgs precede the entry script on the command line.
	RuntimeArgs []string
	// Invoker spawns the runtime. If nil, uses ExecInvoker.
	Invoker Invoker
	// LookPath locates the runtime (default exec.LookPath).
	LookPath func(file string) (string, error)
	// Logger receives run-level entries. If nil, nothing is logged.
	Logger *log.Logger
	// Collector records timeouts. Nil-safe.
	Collector *metrics.Collector
}

// Run writes the harness files next to the artifact, executes the entry
// script and validates the program's behaviour: exit code zero, nothing
// on stdout, and at most an advisory line on stderr.
func (p *RunPipeline) Run(ctx context.Context, req RunRequest) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Nop()
	}

	runtimePath, err := p.lookPath()(p.runtime())
	if err != nil {
		return &RunError{Kind: RunErrRuntimeNotFound, Err: err}
	}

	if err := p.writeHarness(req); err != nil {
		return &RunError{Kind: RunErrWritingHarness, Err: err}
	}

	inv := Invocation{
		Path:    runtimePath,
		Args:    append(append([]string(nil), p.RuntimeArgs...), filepath.Join(req.OutDir, req.Entry)),
		Dir:     req.OutDir,
		Timeout: req.Timeout,
	}
	logger.Debug("invoking runtime", map[string]any{
		"command": inv.String(),
		"timeout": req.Timeout.String(),
	})

	out, err := p.invoker().Invoke(ctx, inv)
	if err != nil {
		return &RunError{Kind: RunErrProcess, Err: err}
	}

	switch {
	case out.TimedOut:
		p.Collector.IncRunTimeout()
		logger.Warn("run timed out", map[string]any{"after": req.Timeout.String()})
		return &RunError{Kind: RunErrTimeout, Output: out, After: req.Timeout}
	case out.ExitCode != 0:
		return &RunError{Kind: RunErrRuntime, Output: out}
	case len(out.Stdout) > 0, !StderrAllowed(out.Stderr):
		return &RunError{Kind: RunErrOutputProduced, Output: out}
	}
	return nil
}

// writeHarness materialises the harness module, the canonical expected
// output and the entry script. Units of the same suite share an output
// directory and may write concurrently, so every file is replaced
// atomically.
func (p *RunPipeline) writeHarness(req RunRequest) error {
	if err := writeFileAtomic(req.OutDir, executor.HarnessFile, executor.Harness()); err != nil {
		return err
	}

	expectation := req.Expectation
	if expectation == nil {
		expectation = &suite.Expectation{}
	}
	canonical, err := expectation.Canonical()
	if err != nil {
		return fmt.Errorf("encode expected output: %w", err)
	}
	if err := writeFileAtomic(req.OutDir, ExpectedOutputFile, canonical); err != nil {
		return err
	}

	entry := executor.EntryScript(req.Artifact, ExpectedOutputFile)
	return writeFileAtomic(req.OutDir, req.Entry, []byte(entry))
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (p *RunPipeline) runtime() string {
	if p.Runtime == "" {
		return DefaultRuntime
	}
	return p.Runtime
}

func (p *RunPipeline) lookPath() func(string) (string, error) {
	if p.LookPath == nil {
		return exec.LookPath
	}
	return p.LookPath
}

func (p *RunPipeline) invoker() Invoker {
	if p.Invoker == nil {
		return ExecInvoker{}
	}
	return p.Invoker
}
