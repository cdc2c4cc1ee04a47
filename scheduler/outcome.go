package scheduler

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/torture/compiler"
	"github.com/pithecene-io/torture/runtime"
	"github.com/pithecene-io/torture/types"
)

// Exit code bits, OR-aggregated across every unit of a harness run.
const (
	ExitCodePassed          = 0x00 // every unit passed or failed as allowed
	ExitCodeCompileFailure  = 0x21 // unallowed compile failure
	ExitCodeRunFailure      = 0x22 // unallowed run failure
	ExitCodeExpectedFailure = 0x24 // a required failure did not occur
	ExitCodeStructural      = 0x28 // suite, descriptor or compiler variant unusable
)

// UnitKey identifies a unit within its suite.
type UnitKey struct {
	Compiler string         `json:"compiler"`
	OptLevel types.OptLevel `json:"opt_level"`
}

func (k UnitKey) String() string {
	return k.Compiler + "/" + string(k.OptLevel)
}

// UnitErrorKind classifies why a unit did not pass.
type UnitErrorKind string

// Unit failure kinds.
const (
	// UnitErrStructural: the suite, its descriptor or the compiler variant
	// could not be used. Never allowed.
	UnitErrStructural UnitErrorKind = "structural"
	// UnitErrCompile: compilation failed.
	UnitErrCompile UnitErrorKind = "compile"
	// UnitErrRun: the compiled program failed.
	UnitErrRun UnitErrorKind = "run"
	// UnitErrExpectedRunFailure: the descriptor requires the run to fail
	// and it succeeded.
	UnitErrExpectedRunFailure UnitErrorKind = "expected_run_failure"
)

// UnitError is the classified failure of one unit.
type UnitError struct {
	Kind UnitErrorKind
	// Allowed is set when the suite's descriptor permits this failure.
	Allowed bool
	// Err is the pipeline error (*runtime.CompileError, *runtime.RunError,
	// *suite.ValidationError or a resolver error).
	Err error
}

func (e *UnitError) Error() string {
	switch e.Kind {
	case UnitErrExpectedRunFailure:
		return "run succeeded but the suite requires it to fail"
	case UnitErrStructural:
		return fmt.Sprintf("structural error: %v", e.Err)
	default:
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	}
}

func (e *UnitError) Unwrap() error { return e.Err }

// ExitCode returns the unit's exit code bit. Allowed failures contribute
// nothing.
func (e *UnitError) ExitCode() int {
	if e == nil || e.Allowed {
		return ExitCodePassed
	}
	switch e.Kind {
	case UnitErrStructural:
		return ExitCodeStructural
	case UnitErrCompile:
		return ExitCodeCompileFailure
	case UnitErrRun:
		return ExitCodeRunFailure
	case UnitErrExpectedRunFailure:
		return ExitCodeExpectedFailure
	default:
		return ExitCodeStructural
	}
}

// ProcessOutput returns the captured process output behind the failure,
// if a process ran.
func (e *UnitError) ProcessOutput() *runtime.ProcessOutput {
	var cerr *runtime.CompileError
	if errors.As(e, &cerr) {
		return cerr.Output
	}
	var rerr *runtime.RunError
	if errors.As(e, &rerr) {
		return rerr.Output
	}
	return nil
}

// Status is the terminal state of a unit.
type Status string

// Unit statuses.
const (
	StatusPassed                Status = "passed"
	StatusAllowedCompileFailure Status = "allowed_compile_failure"
	StatusAllowedRunFailure     Status = "allowed_run_failure"
	StatusCompileFailure        Status = "compile_failure"
	StatusRunFailure            Status = "run_failure"
	StatusExpectedRunFailure    Status = "expected_run_failure"
	StatusStructural            Status = "structural"
	StatusSkipped               Status = "skipped"
)

// Failed reports whether the status contributes to a non-zero exit code.
func (s Status) Failed() bool {
	switch s {
	case StatusCompileFailure, StatusRunFailure, StatusExpectedRunFailure, StatusStructural:
		return true
	default:
		return false
	}
}

// StatusOf maps a unit error onto a status. A nil error means passed.
func StatusOf(err *UnitError) Status {
	if err == nil {
		return StatusPassed
	}
	switch err.Kind {
	case UnitErrStructural:
		return StatusStructural
	case UnitErrCompile:
		if err.Allowed {
			return StatusAllowedCompileFailure
		}
		return StatusCompileFailure
	case UnitErrRun:
		if err.Allowed {
			return StatusAllowedRunFailure
		}
		return StatusRunFailure
	case UnitErrExpectedRunFailure:
		return StatusExpectedRunFailure
	default:
		return StatusStructural
	}
}

// classifyCompile turns a compile pipeline failure into a unit error.
// Stderr from a successful compiler exit is never allowed.
func classifyCompile(err error, allowed bool) *UnitError {
	var cerr *runtime.CompileError
	if errors.As(err, &cerr) && cerr.Kind == runtime.CompileErrUnexpectedStderr {
		allowed = false
	}
	return &UnitError{Kind: UnitErrCompile, Allowed: allowed, Err: err}
}

// classifyResolve turns a resolver failure into a unit error. An
// unparseable variant probe is structural; a missing compiler is a
// compile failure.
func classifyResolve(err error, allowed bool) *UnitError {
	if errors.Is(err, compiler.ErrProbeParsing) {
		return &UnitError{Kind: UnitErrStructural, Err: err}
	}
	return classifyCompile(&runtime.CompileError{Kind: runtime.CompileErrCompilerNotFound, Err: err}, allowed)
}
