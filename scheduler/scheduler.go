// Package scheduler runs the suite × compiler × optimization-level matrix
// over a bounded worker pool and classifies every unit against its suite's
// expectations.
//
// Per unit the scheduler walks
//
//	not_started → validated → compiled → variant_detected → run → done
//
// stopping early on a structural error, a compile failure (terminal state
// expected_compile_failure when allowed) or a run failure (terminal state
// expected_run_failure when allowed). Every transition is logged at debug
// level.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/torture/compiler"
	"github.com/pithecene-io/torture/condition"
	"github.com/pithecene-io/torture/log"
	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/outdir"
	"github.com/pithecene-io/torture/runtime"
	"github.com/pithecene-io/torture/suite"
	"github.com/pithecene-io/torture/types"
)

// Config configures a harness run.
type Config struct {
	// RunID identifies the harness run. Generated when empty.
	RunID string
	// Compilers are the compiler names or paths to test (default "elm").
	Compilers []string
	// OptLevels are the optimization levels to test (default dev).
	OptLevels []types.OptLevel
	// MaxRetries bounds compile attempts per unit.
	MaxRetries int
	// RunTimeout kills a compiled program once elapsed (default 10s).
	RunTimeout time.Duration
	// OutDir, when set, is used as every suite's output directory.
	OutDir string
	// TempRoot is the parent of temporary output directories.
	TempRoot string
	// FailFast stops starting units after the first unallowed outcome.
	FailFast bool
	// Parallel is the worker count (default runtime.NumCPU()).
	Parallel int
	// Runtime is the JavaScript runtime (default "node").
	Runtime string
	// RuntimeArgs precede the entry script on the runtime command line.
	RuntimeArgs []string
	// Platform is reported to condition trees (default the host).
	Platform types.Platform
	// ProbeFlag and VariantMarker configure compiler variant detection.
	ProbeFlag     string
	VariantMarker string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Units log through children of it.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Scheduler) { s.collector = c }
}

// WithInvoker replaces the process invoker used by both pipelines.
func WithInvoker(inv runtime.Invoker) Option {
	return func(s *Scheduler) { s.invoker = inv }
}

// WithResolver replaces the compiler resolver.
func WithResolver(r *compiler.Resolver) Option {
	return func(s *Scheduler) { s.resolver = r }
}

// Scheduler runs harness matrices. A Scheduler is used for a single Run.
type Scheduler struct {
	config    Config
	logger    *log.Logger
	collector *metrics.Collector
	resolver  *compiler.Resolver
	invoker   runtime.Invoker
	slugs     map[string]string

	// compileMu serialises every compiler invocation in the process.
	compileMu sync.Mutex
	// abort is set once by fail-fast and never cleared.
	abort atomic.Bool
}

// New creates a scheduler, filling in configuration defaults.
func New(cfg Config, opts ...Option) *Scheduler {
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if len(cfg.Compilers) == 0 {
		cfg.Compilers = []string{"elm"}
	}
	if len(cfg.OptLevels) == 0 {
		cfg.OptLevels = []types.OptLevel{types.OptDev}
	}
	cfg.Compilers = dedupe(cfg.Compilers)
	cfg.OptLevels = dedupe(cfg.OptLevels)
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = runtime.DefaultTimeout
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = goruntime.NumCPU()
	}
	if cfg.Platform == "" {
		cfg.Platform = types.HostPlatform()
	}

	s := &Scheduler{config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	if s.resolver == nil {
		s.resolver = compiler.NewResolver(compiler.Config{
			ProbeFlag:     cfg.ProbeFlag,
			VariantMarker: cfg.VariantMarker,
		})
	}
	s.slugs = compilerSlugs(cfg.Compilers)
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// Result is the outcome of a harness run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	// Suites holds one report per suite, in input order.
	Suites []*SuiteReport
	// Aborted is set when fail-fast or cancellation skipped units.
	Aborted bool
}

// ExitCode ORs the exit codes of every unit.
func (r *Result) ExitCode() int {
	code := ExitCodePassed
	for _, s := range r.Suites {
		code |= s.ExitCode()
	}
	return code
}

// Units returns the number of units in the matrix.
func (r *Result) Units() int {
	n := 0
	for _, s := range r.Suites {
		n += len(s.Units)
	}
	return n
}

// SuiteReport aggregates the units of one suite.
type SuiteReport struct {
	// Suite is the suite path as given.
	Suite string
	// Name is the suite directory name.
	Name string
	// OutDir is the output directory used, empty if no unit acquired one.
	OutDir string
	// Persistent is set when OutDir was kept for inspection.
	Persistent bool
	// Units holds every unit in compiler-then-opt-level order.
	Units []*UnitResult
}

// Tested returns the keys of the units that started, in matrix order.
func (r *SuiteReport) Tested() []UnitKey {
	keys := make([]UnitKey, 0, len(r.Units))
	for _, u := range r.Units {
		if u.Status != StatusSkipped {
			keys = append(keys, u.Key)
		}
	}
	return keys
}

// Failures maps every unit that did not pass cleanly to its error.
// Units absent from the map passed.
func (r *SuiteReport) Failures() map[UnitKey]*UnitError {
	failures := make(map[UnitKey]*UnitError)
	for _, u := range r.Units {
		if u.Err != nil {
			failures[u.Key] = u.Err
		}
	}
	return failures
}

// ExitCode ORs the exit codes of the suite's units.
func (r *SuiteReport) ExitCode() int {
	code := ExitCodePassed
	for _, u := range r.Units {
		code |= u.Err.ExitCode()
	}
	return code
}

// UnitResult is the recorded outcome of one unit.
type UnitResult struct {
	Key     UnitKey
	Variant types.CompilerVariant
	Status  Status
	Err     *UnitError
	// OutDir is the directory holding the unit's artifacts.
	OutDir string
	// Promoted is set when this unit kept the directory for inspection.
	Promoted bool
	Duration time.Duration
}

type preparedSuite struct {
	key         string
	name        string
	suite       *suite.Suite
	expectation *suite.Expectation
	err         error
}

// prepare validates a suite and parses its descriptor once for all of its
// units.
func prepare(path string) *preparedSuite {
	ps := &preparedSuite{key: path, name: filepath.Base(path)}
	s, err := suite.Open(path)
	if err != nil {
		ps.err = err
		return ps
	}
	ps.key, ps.name, ps.suite = s.Path, s.Name, s
	exp, err := s.LoadExpectation()
	if err != nil {
		ps.err = err
		return ps
	}
	ps.expectation = exp
	return ps
}

type job struct {
	suite  *preparedSuite
	result *UnitResult
}

type pipelines struct {
	compile *runtime.CompilePipeline
	run     *runtime.RunPipeline
	outdirs *outdir.Manager
}

// Run executes every unit of the matrix and returns the aggregated result.
// Cancelling ctx stops new units from starting; units in flight see the
// cancellation through their subprocesses.
func (s *Scheduler) Run(ctx context.Context, suitePaths []string) *Result {
	result := &Result{RunID: s.config.RunID, StartedAt: time.Now()}

	env := &pipelines{
		compile: &runtime.CompilePipeline{
			Invoker:   s.invoker,
			Lock:      &s.compileMu,
			Logger:    s.logger,
			Collector: s.collector,
		},
		run: &runtime.RunPipeline{
			Runtime:     s.config.Runtime,
			RuntimeArgs: s.config.RuntimeArgs,
			Invoker:     s.invoker,
			Logger:      s.logger,
			Collector:   s.collector,
		},
		outdirs: outdir.NewManager(outdir.Options{
			Root:     s.config.TempRoot,
			Provided: s.config.OutDir,
			Logger:   s.logger,
		}),
	}

	var jobs []job
	prepared := make([]*preparedSuite, 0, len(suitePaths))
	for _, path := range suitePaths {
		ps := prepare(path)
		prepared = append(prepared, ps)
		report := &SuiteReport{Suite: path, Name: ps.name}
		for _, c := range s.config.Compilers {
			for _, o := range s.config.OptLevels {
				unit := &UnitResult{Key: UnitKey{Compiler: c, OptLevel: o}, Status: StatusSkipped}
				report.Units = append(report.Units, unit)
				jobs = append(jobs, job{suite: ps, result: unit})
			}
		}
		env.outdirs.Reserve(ps.key, len(report.Units))
		result.Suites = append(result.Suites, report)
	}

	s.logger.Info("harness run started", map[string]any{
		"suites":   len(suitePaths),
		"units":    len(jobs),
		"parallel": s.config.Parallel,
		"platform": s.config.Platform.String(),
	})

	queue := make(chan job)
	var wg sync.WaitGroup
	for range min(s.config.Parallel, max(len(jobs), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				s.work(ctx, j, env)
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	persistent := env.outdirs.Persistent()
	for i, report := range result.Suites {
		for _, u := range report.Units {
			if u.OutDir != "" {
				report.OutDir = u.OutDir
			}
			if u.Status == StatusSkipped {
				result.Aborted = true
			}
		}
		_, report.Persistent = persistent[prepared[i].key]
	}
	result.Duration = time.Since(result.StartedAt)

	s.logger.Info("harness run finished", map[string]any{
		"exit_code":   result.ExitCode(),
		"duration_ms": result.Duration.Milliseconds(),
		"aborted":     result.Aborted,
	})
	return result
}

// work runs one unit unless fail-fast or cancellation has stopped the run.
func (s *Scheduler) work(ctx context.Context, j job, env *pipelines) {
	res := j.result
	if s.abort.Load() || ctx.Err() != nil {
		s.collector.IncUnitSkipped()
		_ = env.outdirs.Skip(j.suite.key)
		s.logger.Debug("unit skipped", map[string]any{
			"suite": j.suite.name,
			"unit":  res.Key.String(),
		})
		return
	}

	s.collector.IncUnitStarted()
	started := time.Now()
	res.Err = s.runUnit(ctx, j, env)
	res.Duration = time.Since(started)
	res.Status = StatusOf(res.Err)
	s.record(res.Status)

	if res.Status.Failed() && s.config.FailFast && s.abort.CompareAndSwap(false, true) {
		s.logger.Warn("fail-fast: not starting further units", map[string]any{
			"suite":  j.suite.name,
			"unit":   res.Key.String(),
			"status": string(res.Status),
		})
	}
}

func (s *Scheduler) runUnit(ctx context.Context, j job, env *pipelines) *UnitError {
	res := j.result
	key := res.Key
	logger := s.logger.With(map[string]any{
		"suite":     j.suite.name,
		"compiler":  key.Compiler,
		"opt_level": key.OptLevel.String(),
	})
	transition := func(state string) {
		logger.Debug("unit state", map[string]any{"state": state})
	}
	transition("not_started")

	if j.suite.err != nil {
		_ = env.outdirs.Skip(j.suite.key)
		return &UnitError{Kind: UnitErrStructural, Err: j.suite.err}
	}
	transition("validated")

	lease, err := env.outdirs.Acquire(j.suite.key)
	if err != nil {
		_ = env.outdirs.Skip(j.suite.key)
		return &UnitError{Kind: UnitErrStructural, Err: err}
	}
	defer func() {
		if err := lease.Release(); err != nil {
			logger.Warn("failed to release output directory", map[string]any{"error": err.Error()})
		}
	}()
	res.OutDir = lease.Path()

	exp := j.suite.expectation
	compileAllowed := condition.Evaluate(exp.CompileFailsIf, condition.CompileFacts{
		OptLevel: key.OptLevel,
		Platform: s.config.Platform,
	})

	handle, err := s.resolver.Resolve(ctx, key.Compiler)
	if err != nil {
		uerr := classifyResolve(err, compileAllowed)
		if uerr.Allowed {
			transition("expected_compile_failure")
		}
		return uerr
	}
	res.Variant = handle.Variant

	artifact := s.artifactName(key)
	err = env.compile.Compile(ctx, runtime.CompileRequest{
		Suite:      j.suite.suite,
		Compiler:   handle,
		OptLevel:   key.OptLevel,
		OutFile:    filepath.Join(lease.Path(), artifact),
		MaxRetries: s.config.MaxRetries,
	})
	if err != nil {
		uerr := classifyCompile(err, compileAllowed)
		if uerr.Allowed {
			transition("expected_compile_failure")
		}
		return uerr
	}
	transition("compiled")

	runAllowed := condition.Evaluate(exp.RunFailsIf, condition.RunFacts{
		OptLevel:        key.OptLevel,
		Platform:        s.config.Platform,
		CompilerVariant: handle.Variant,
	})
	transition("variant_detected")

	err = env.run.Run(ctx, runtime.RunRequest{
		OutDir:      lease.Path(),
		Artifact:    artifact,
		Entry:       s.entryName(key),
		Expectation: exp,
		Timeout:     s.config.RunTimeout,
	})
	transition("run")

	switch {
	case err != nil && runAllowed:
		transition("expected_run_failure")
		return &UnitError{Kind: UnitErrRun, Allowed: true, Err: err}
	case err != nil:
		lease.Promote()
		res.Promoted = true
		logger.Info("keeping output directory", map[string]any{"path": lease.Path()})
		return &UnitError{Kind: UnitErrRun, Err: err}
	case runAllowed:
		return &UnitError{Kind: UnitErrExpectedRunFailure}
	}
	transition("done")
	return nil
}

func (s *Scheduler) record(status Status) {
	switch status {
	case StatusPassed:
		s.collector.IncUnitPassed()
	case StatusAllowedCompileFailure, StatusAllowedRunFailure:
		s.collector.IncUnitAllowedFailure()
	case StatusCompileFailure, StatusRunFailure:
		s.collector.IncUnitFailed()
	case StatusExpectedRunFailure:
		s.collector.IncUnitAnomaly()
	case StatusStructural:
		s.collector.IncUnitStructural()
	}
}

// artifactName is unique per (compiler, opt level) so units of one suite
// can share its output directory. Artifact names always end in
// "-<opt>.js".
func (s *Scheduler) artifactName(key UnitKey) string {
	return s.slugs[key.Compiler] + "-" + key.OptLevel.String() + ".js"
}

// entryName names the unit's entry script. The ".main.js" suffix never
// matches an artifact name, whatever the compiler is called.
func (s *Scheduler) entryName(key UnitKey) string {
	return s.slugs[key.Compiler] + "-" + key.OptLevel.String() + ".main.js"
}

var unsafeSlug = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// compilerSlugs derives a distinct file-name-safe slug for every compiler.
func compilerSlugs(names []string) map[string]string {
	slugs := make(map[string]string, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := slugs[name]; ok {
			continue
		}
		base := unsafeSlug.ReplaceAllString(filepath.Base(name), "_")
		if base == "" || base == "." || base == string(filepath.Separator) {
			base = "compiler"
		}
		slug := base
		for n := 2; used[slug]; n++ {
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		used[slug] = true
		slugs[name] = slug
	}
	return slugs
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
