// Package runtime implements the compile and run pipelines for a single
// work unit: invoking the compiler against a suite, then executing the
// produced artifact under a JavaScript runtime inside the harness.
//
// The pipelines report raw failures only. Whether a failure was expected
// is decided by the scheduler.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pithecene-io/torture/compiler"
	"github.com/pithecene-io/torture/log"
	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/suite"
	"github.com/pithecene-io/torture/types"
)

// CompileRequest describes one compilation of a suite.
type CompileRequest struct {
	// Suite is the suite to compile.
	Suite *suite.Suite
	// Compiler is the resolved compiler.
	Compiler *compiler.Handle
	// OptLevel selects the compiler optimization flags.
	OptLevel types.OptLevel
	// OutFile is the absolute path of the artifact to produce.
	OutFile string
	// MaxRetries is the maximum number of attempts. Values below 1 mean 1.
	MaxRetries int
}

// CompilePipeline compiles suites.
type CompilePipeline struct {
	// Invoker spawns the compiler. If nil, uses ExecInvoker.
	Invoker Invoker
	// Lock is held around each attempt (cache removal and compiler process).
	// The compiler's global state is not safe for concurrent use, so the
	// scheduler shares one lock across all workers. If nil, attempts are
	// not serialised.
	Lock sync.Locker
	// Logger receives attempt-level entries. If nil, nothing is logged.
	Logger *log.Logger
	// Collector records compile attempts. Nil-safe.
	Collector *metrics.Collector
}

// Compile runs the compiler up to MaxRetries times, stopping at the first
// zero exit. Every attempt starts from an empty compiler cache. When all
// attempts fail, the last attempt's error is returned.
func (p *CompilePipeline) Compile(ctx context.Context, req CompileRequest) error {
	logger := p.Logger
	if logger == nil {
		logger = log.Nop()
	}

	outDir := filepath.Dir(req.OutFile)
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return &CompileError{Kind: CompileErrOutDirIsNotDir, Err: fmt.Errorf("%s is not a directory", outDir)}
	}

	targets, err := req.Suite.Targets()
	if err != nil {
		return &CompileError{Kind: CompileErrReadingTargets, Err: err}
	}

	args := append([]string{"make"}, targets...)
	args = append(args, req.OptLevel.Flags()...)
	args = append(args, "--output", req.OutFile)

	// The compiler inherits the harness environment, so ELM_HOME reaches
	// it when set.
	inv := Invocation{
		Path: req.Compiler.Path,
		Args: args,
		Dir:  req.Suite.Path,
	}

	attempts := max(req.MaxRetries, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return &CompileError{Kind: CompileErrProcess, Err: err}
		}
		if attempt > 1 {
			p.Collector.IncCompileRetry()
		}

		logger.Debug("invoking compiler", map[string]any{
			"attempt": attempt,
			"of":      attempts,
			"command": inv.String(),
		})

		out, err := p.attempt(ctx, req.Suite, inv)
		if err != nil {
			var cerr *CompileError
			if errors.As(err, &cerr) && cerr.Kind == CompileErrDeletingCache {
				return err
			}
			lastErr = err
			continue
		}

		if out.Success() {
			if len(out.Stderr) > 0 {
				return &CompileError{Kind: CompileErrUnexpectedStderr, Output: out}
			}
			return nil
		}

		lastErr = &CompileError{Kind: CompileErrCompiler, Output: out}
		logger.Debug("compiler attempt failed", map[string]any{
			"attempt":   attempt,
			"exit_code": out.ExitCode,
		})
	}
	return lastErr
}

// attempt clears the compiler cache and runs the compiler once, holding
// the pipeline lock for the duration.
func (p *CompilePipeline) attempt(ctx context.Context, s *suite.Suite, inv Invocation) (*ProcessOutput, error) {
	if p.Lock != nil {
		p.Lock.Lock()
		defer p.Lock.Unlock()
	}

	// RemoveAll reports success when the cache does not exist.
	if err := os.RemoveAll(s.CachePath()); err != nil {
		return nil, &CompileError{Kind: CompileErrDeletingCache, Err: err}
	}

	p.Collector.IncCompileAttempt()
	out, err := p.invoker().Invoke(ctx, inv)
	if err != nil {
		return nil, &CompileError{Kind: CompileErrProcess, Err: err}
	}
	return out, nil
}

func (p *CompilePipeline) invoker() Invoker {
	if p.Invoker == nil {
		return ExecInvoker{}
	}
	return p.Invoker
}
