package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/pithecene-io/torture/compiler"
	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/suite"
	"github.com/pithecene-io/torture/types"
)

// scriptedInvoker returns canned outputs in order, repeating the last one.
type scriptedInvoker struct {
	mu       sync.Mutex
	outputs  []*ProcessOutput
	calls    []Invocation
	onInvoke func(inv Invocation)
}

func (s *scriptedInvoker) Invoke(_ context.Context, inv Invocation) (*ProcessOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onInvoke != nil {
		s.onInvoke(inv)
	}
	s.calls = append(s.calls, inv)
	i := min(len(s.calls)-1, len(s.outputs)-1)
	return s.outputs[i], nil
}

// recordingLock tracks whether it is held.
type recordingLock struct {
	mu   sync.Mutex
	held bool
}

func (l *recordingLock) Lock()   { l.mu.Lock(); l.held = true }
func (l *recordingLock) Unlock() { l.held = false; l.mu.Unlock() }

func newSuite(t *testing.T, files map[string]string) *suite.Suite {
	t.Helper()
	dir := t.TempDir()
	files[suite.ProjectFile] = "{}"
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := suite.Open(dir)
	if err != nil {
		t.Fatalf("open suite: %v", err)
	}
	return s
}

func compileRequest(t *testing.T, s *suite.Suite, opt types.OptLevel, retries int) CompileRequest {
	return CompileRequest{
		Suite:      s,
		Compiler:   &compiler.Handle{Name: "elm", Path: "/opt/elm/bin/elm", Variant: types.VariantOfficial},
		OptLevel:   opt,
		OutFile:    filepath.Join(t.TempDir(), "elm-dev.js"),
		MaxRetries: retries,
	}
}

var (
	ok   = &ProcessOutput{ExitCode: 0}
	fail = &ProcessOutput{ExitCode: 1, Stderr: []byte("-- PARSE ERROR --")}
)

func TestCompile_CommandLine(t *testing.T) {
	s := newSuite(t, map[string]string{suite.TargetsFile: "src/A.elm\nsrc/B.elm\n"})
	inv := &scriptedInvoker{outputs: []*ProcessOutput{ok}}
	p := &CompilePipeline{Invoker: inv}

	req := compileRequest(t, s, types.OptOptimize, 1)
	if err := p.Compile(t.Context(), req); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if len(inv.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(inv.calls))
	}
	call := inv.calls[0]
	want := []string{"make", "src/A.elm", "src/B.elm", "--optimize", "--output", req.OutFile}
	if !slices.Equal(call.Args, want) {
		t.Errorf("args = %v, want %v", call.Args, want)
	}
	if call.Path != "/opt/elm/bin/elm" {
		t.Errorf("path = %q", call.Path)
	}
	if call.Dir != s.Path {
		t.Errorf("dir = %q, want suite dir %q", call.Dir, s.Path)
	}
}

func TestCompile_DevHasNoFlag(t *testing.T) {
	s := newSuite(t, map[string]string{})
	inv := &scriptedInvoker{outputs: []*ProcessOutput{ok}}
	p := &CompilePipeline{Invoker: inv}

	req := compileRequest(t, s, types.OptDev, 1)
	if err := p.Compile(t.Context(), req); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := []string{"make", suite.DefaultTarget, "--output", req.OutFile}
	if !slices.Equal(inv.calls[0].Args, want) {
		t.Errorf("args = %v, want %v", inv.calls[0].Args, want)
	}
}

func TestCompile_RetriesUntilSuccess(t *testing.T) {
	s := newSuite(t, map[string]string{})
	inv := &scriptedInvoker{outputs: []*ProcessOutput{fail, fail, ok}}
	collector := metrics.NewCollector("run", "linux")
	p := &CompilePipeline{Invoker: inv, Collector: collector}

	if err := p.Compile(t.Context(), compileRequest(t, s, types.OptDev, 5)); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(inv.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(inv.calls))
	}
	snap := collector.Snapshot()
	if snap.CompileAttempts != 3 || snap.CompileRetries != 2 {
		t.Errorf("attempts/retries = %d/%d, want 3/2", snap.CompileAttempts, snap.CompileRetries)
	}
}

func TestCompile_ReturnsLastError(t *testing.T) {
	s := newSuite(t, map[string]string{})
	first := &ProcessOutput{ExitCode: 1, Stderr: []byte("first")}
	second := &ProcessOutput{ExitCode: 2, Stderr: []byte("second")}
	inv := &scriptedInvoker{outputs: []*ProcessOutput{first, second}}
	p := &CompilePipeline{Invoker: inv}

	err := p.Compile(t.Context(), compileRequest(t, s, types.OptDev, 2))

	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CompileError, got %v", err)
	}
	if cerr.Kind != CompileErrCompiler {
		t.Errorf("kind = %q", cerr.Kind)
	}
	if cerr.Output != second {
		t.Errorf("expected the second attempt's output, got %+v", cerr.Output)
	}
	if len(inv.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(inv.calls))
	}
}

func TestCompile_ZeroRetriesMeansOneAttempt(t *testing.T) {
	s := newSuite(t, map[string]string{})
	inv := &scriptedInvoker{outputs: []*ProcessOutput{fail}}
	p := &CompilePipeline{Invoker: inv}

	if err := p.Compile(t.Context(), compileRequest(t, s, types.OptDev, 0)); err == nil {
		t.Fatal("expected failure")
	}
	if len(inv.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(inv.calls))
	}
}

func TestCompile_StderrOnSuccessIsFatal(t *testing.T) {
	s := newSuite(t, map[string]string{})
	noisy := &ProcessOutput{ExitCode: 0, Stderr: []byte("warning: something")}
	inv := &scriptedInvoker{outputs: []*ProcessOutput{noisy, ok}}
	p := &CompilePipeline{Invoker: inv}

	err := p.Compile(t.Context(), compileRequest(t, s, types.OptDev, 3))

	var cerr *CompileError
	if !errors.As(err, &cerr) || cerr.Kind != CompileErrUnexpectedStderr {
		t.Fatalf("expected UnexpectedStderr, got %v", err)
	}
	if len(inv.calls) != 1 {
		t.Errorf("a zero exit must stop retrying; calls = %d", len(inv.calls))
	}
}

func TestCompile_ClearsCacheUnderLock(t *testing.T) {
	s := newSuite(t, map[string]string{})
	lock := &recordingLock{}

	var sawCache, sawUnlocked bool
	inv := &scriptedInvoker{
		outputs: []*ProcessOutput{fail, ok},
		onInvoke: func(Invocation) {
			if _, err := os.Stat(s.CachePath()); err == nil {
				sawCache = true
			}
			if !lock.held {
				sawUnlocked = true
			}
			// Leave a cache behind for the next attempt to remove.
			if err := os.MkdirAll(filepath.Join(s.CachePath(), "0.19.1"), 0o755); err != nil {
				t.Errorf("mkdir cache: %v", err)
			}
		},
	}
	p := &CompilePipeline{Invoker: inv, Lock: lock}

	if err := p.Compile(t.Context(), compileRequest(t, s, types.OptDev, 2)); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if sawCache {
		t.Error("compiler cache was present when the compiler started")
	}
	if sawUnlocked {
		t.Error("compiler ran without holding the compile lock")
	}
	if lock.held {
		t.Error("compile lock still held after Compile returned")
	}
}

func TestCompile_OutDirIsNotDir(t *testing.T) {
	s := newSuite(t, map[string]string{})
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p := &CompilePipeline{Invoker: &scriptedInvoker{outputs: []*ProcessOutput{ok}}}

	req := compileRequest(t, s, types.OptDev, 1)
	req.OutFile = filepath.Join(notDir, "elm.js")

	var cerr *CompileError
	if err := p.Compile(t.Context(), req); !errors.As(err, &cerr) || cerr.Kind != CompileErrOutDirIsNotDir {
		t.Fatalf("expected OutDirIsNotDir, got %v", err)
	}
}

func TestCompile_RealProcess(t *testing.T) {
	s := newSuite(t, map[string]string{})
	bin := t.TempDir()
	script := filepath.Join(bin, "elm")
	body := "#!/bin/sh\n" +
		"# last argument is the output path\n" +
		"for last; do :; done\n" +
		"echo 'var Elm = {};' > \"$last\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	req := compileRequest(t, s, types.OptDebug, 1)
	req.Compiler = &compiler.Handle{Name: "elm", Path: script, Variant: types.VariantOfficial}

	p := &CompilePipeline{}
	if err := p.Compile(t.Context(), req); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := os.Stat(req.OutFile); err != nil {
		t.Errorf("artifact not produced: %v", err)
	}
}
