//go:build unix

package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestExecInvoker_CapturesOutputAndExitCode(t *testing.T) {
	out, err := ExecInvoker{}.Invoke(t.Context(), Invocation{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 4"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out.ExitCode != 4 {
		t.Errorf("exit code = %d, want 4", out.ExitCode)
	}
	if string(out.Stdout) != "out\n" || string(out.Stderr) != "err\n" {
		t.Errorf("stdout=%q stderr=%q", out.Stdout, out.Stderr)
	}
	if out.Success() {
		t.Error("non-zero exit reported as success")
	}
}

func TestExecInvoker_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	out, err := ExecInvoker{}.Invoke(t.Context(), Invocation{
		Path: "/bin/sh",
		Args: []string{"-c", "pwd -P"},
		Dir:  dir,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if strings.TrimSpace(string(out.Stdout)) != want {
		t.Errorf("pwd = %q, want %q", out.Stdout, want)
	}
}

func TestExecInvoker_StartFailure(t *testing.T) {
	_, err := ExecInvoker{}.Invoke(t.Context(), Invocation{Path: "/nonexistent/elm"})
	if err == nil {
		t.Fatal("expected start failure")
	}
}

func TestExecInvoker_TimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")

	start := time.Now()
	out, err := ExecInvoker{}.Invoke(t.Context(), Invocation{
		Path:    "/bin/sh",
		Args:    []string{"-c", "echo $$ > " + pidFile + "; echo started; sleep 30"},
		Timeout: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !out.TimedOut || out.ExitCode != -1 {
		t.Fatalf("expected timed out result, got %+v", out)
	}
	if string(out.Stdout) != "started\n" {
		t.Errorf("partial stdout = %q", out.Stdout)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("kill took %s", time.Since(start))
	}

	raw, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatal(err)
	}
	// The direct child has been reaped by Wait.
	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Errorf("process %d still exists (kill: %v)", pid, err)
	}
}

func TestExecInvoker_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err := ExecInvoker{}.Invoke(ctx, Invocation{
		Path: "/bin/sh",
		Args: []string{"-c", "sleep 30"},
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestInvocation_String(t *testing.T) {
	inv := Invocation{Path: "elm", Args: []string{"make", "Main.elm", "--output", "/tmp/out.js"}}
	if got := inv.String(); got != "elm make Main.elm --output /tmp/out.js" {
		t.Errorf("String() = %q", got)
	}
}
