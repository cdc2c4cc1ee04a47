package runtime

import (
	"fmt"
	"time"
)

// CompileErrorKind classifies compile pipeline failures.
type CompileErrorKind string

// Compile failure kinds.
const (
	// CompileErrCompilerNotFound: the compiler executable could not be resolved.
	CompileErrCompilerNotFound CompileErrorKind = "compiler_not_found"
	// CompileErrProcess: the compiler process could not be spawned or waited on.
	CompileErrProcess CompileErrorKind = "process"
	// CompileErrCompiler: the compiler exited non-zero.
	CompileErrCompiler CompileErrorKind = "compiler"
	// CompileErrUnexpectedStderr: the compiler exited zero but wrote to stderr.
	CompileErrUnexpectedStderr CompileErrorKind = "unexpected_stderr"
	// CompileErrDeletingCache: the suite's compiler cache could not be removed.
	CompileErrDeletingCache CompileErrorKind = "deleting_cache"
	// CompileErrReadingTargets: targets.txt exists but could not be read.
	CompileErrReadingTargets CompileErrorKind = "reading_targets"
	// CompileErrOutDirIsNotDir: the output location exists and is not a directory.
	CompileErrOutDirIsNotDir CompileErrorKind = "out_dir_is_not_dir"
)

// CompileError is returned by CompilePipeline.Compile.
type CompileError struct {
	Kind CompileErrorKind
	// Output is the captured compiler output, when a process ran.
	Output *ProcessOutput
	// Err is the underlying cause, when there is one.
	Err error
}

func (e *CompileError) Error() string {
	switch e.Kind {
	case CompileErrCompiler:
		return fmt.Sprintf("compiler exited with code %d", e.Output.ExitCode)
	case CompileErrUnexpectedStderr:
		return "compiler succeeded but wrote to stderr"
	default:
		if e.Err != nil {
			return fmt.Sprintf("compile failed (%s): %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("compile failed (%s)", e.Kind)
	}
}

func (e *CompileError) Unwrap() error { return e.Err }

// RunErrorKind classifies run pipeline failures.
type RunErrorKind string

// Run failure kinds.
const (
	// RunErrRuntimeNotFound: the runtime executable could not be resolved.
	RunErrRuntimeNotFound RunErrorKind = "runtime_not_found"
	// RunErrProcess: the runtime process could not be spawned or waited on.
	RunErrProcess RunErrorKind = "process"
	// RunErrWritingHarness: the harness, entry script or expected output could not be written.
	RunErrWritingHarness RunErrorKind = "writing_harness"
	// RunErrRuntime: the program exited non-zero.
	RunErrRuntime RunErrorKind = "runtime"
	// RunErrOutputProduced: the program exited zero but produced output.
	RunErrOutputProduced RunErrorKind = "output_produced"
	// RunErrTimeout: the program was killed after the run timeout.
	RunErrTimeout RunErrorKind = "timeout"
)

// RunError is returned by RunPipeline.Run.
type RunError struct {
	Kind RunErrorKind
	// Output is the captured runtime output, when a process ran.
	// For timeouts it holds whatever was produced before the kill.
	Output *ProcessOutput
	// After is the elapsed timeout for RunErrTimeout.
	After time.Duration
	// Err is the underlying cause, when there is one.
	Err error
}

func (e *RunError) Error() string {
	switch e.Kind {
	case RunErrRuntime:
		return fmt.Sprintf("program exited with code %d", e.Output.ExitCode)
	case RunErrOutputProduced:
		return "program produced unexpected output"
	case RunErrTimeout:
		return fmt.Sprintf("program timed out after %s", e.After)
	default:
		if e.Err != nil {
			return fmt.Sprintf("run failed (%s): %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("run failed (%s)", e.Kind)
	}
}

func (e *RunError) Unwrap() error { return e.Err }
