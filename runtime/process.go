package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// drainDelay bounds how long Wait keeps reading output pipes after the
// process has exited or been killed. Orphaned grandchildren holding the
// pipes open must not stall the harness.
const drainDelay = 2 * time.Second

// Invocation describes one external process to run to completion.
type Invocation struct {
	// Path is the executable.
	Path string
	// Args are the arguments, excluding the executable.
	Args []string
	// Dir is the working directory.
	Dir string
	// Env is the environment. Nil inherits the harness environment.
	Env []string
	// Timeout kills the process group once elapsed. Zero means no limit.
	Timeout time.Duration
}

// String renders the command line for logs and diagnostics.
func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Path}, inv.Args...), " ")
}

// ProcessOutput is the captured result of an invocation.
type ProcessOutput struct {
	// ExitCode is the process exit code, or -1 if it was killed.
	ExitCode int
	// Stdout is everything written to stdout.
	Stdout []byte
	// Stderr is everything written to stderr.
	Stderr []byte
	// TimedOut is set when the process was killed after Timeout.
	TimedOut bool
}

// Success reports a zero exit that was not cut short.
func (o *ProcessOutput) Success() bool {
	return !o.TimedOut && o.ExitCode == 0
}

// Invoker runs external processes. The pipelines only ever spawn
// processes through an Invoker so tests can substitute scripted outcomes.
type Invoker interface {
	// Invoke runs inv to completion. A non-nil error means the process
	// could not be started or waited on; a non-zero exit is not an error.
	Invoke(ctx context.Context, inv Invocation) (*ProcessOutput, error)
}

// ExecInvoker runs invocations as real child processes. Each child is
// placed in its own process group with stdin connected to the null
// device, so a timeout or cancellation kills everything it spawned.
type ExecInvoker struct{}

// Invoke implements Invoker.
func (ExecInvoker) Invoke(ctx context.Context, inv Invocation) (*ProcessOutput, error) {
	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.WaitDelay = drainDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", inv.Path, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if inv.Timeout > 0 {
		timer := time.NewTimer(inv.Timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return collect(err, &stdout, &stderr)

	case <-expired:
		_ = killProcessGroup(cmd)
		<-done
		return &ProcessOutput{
			ExitCode: -1,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			TimedOut: true,
		}, nil

	case <-ctx.Done():
		_ = killProcessGroup(cmd)
		<-done
		return nil, ctx.Err()
	}
}

// collect turns the Wait result into a ProcessOutput. Wait has returned,
// so the output buffers are no longer written to.
func collect(waitErr error, stdout, stderr *bytes.Buffer) (*ProcessOutput, error) {
	out := &ProcessOutput{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if waitErr == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// Exited cleanly, but a descendant kept the pipes open.
		return out, nil
	}
	return nil, fmt.Errorf("wait failed: %w", waitErr)
}
