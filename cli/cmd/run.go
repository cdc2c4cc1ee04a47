package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/adapter"
	"github.com/pithecene-io/torture/adapter/redis"
	"github.com/pithecene-io/torture/adapter/webhook"
	"github.com/pithecene-io/torture/archive"
	"github.com/pithecene-io/torture/cli/config"
	"github.com/pithecene-io/torture/cli/render"
	"github.com/pithecene-io/torture/log"
	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/scheduler"
	"github.com/pithecene-io/torture/suite"
	"github.com/pithecene-io/torture/types"
)

// exitUsage is returned for invalid flags or configuration, before any
// unit runs. Harness outcomes use the scheduler's exit code bits.
const exitUsage = 1

// RunCommand returns the run command.
// This is the only command that compiles and runs suites.
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "suite",
			Usage: "Path to a single suite directory",
		},
		&cli.StringFlag{
			Name:  "suites",
			Usage: "Path to a directory whose subdirectories are suites",
		},
		&cli.StringFlag{
			Name:  "out-dir",
			Usage: "Keep build output in this directory (only with --suite)",
		},
		&cli.StringFlag{
			Name:  "platform",
			Usage: "Platform reported to suite conditions: linux, macos, windows (default: host)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "warn",
		},
		NoColorFlag,
	}
	return &cli.Command{
		Name:   "run",
		Usage:  "Compile and run suites across the compiler × optimization-level matrix",
		Flags:  append(flags, harnessFlags()...),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	suitePaths, err := selectSuites(c)
	if err != nil {
		return err
	}

	cfg, err := harnessConfig(c)
	if err != nil {
		return cli.Exit("invalid configuration: "+err.Error(), exitUsage)
	}
	cfg = cfg.Effective()

	platform := types.HostPlatform()
	if s := c.String("platform"); s != "" {
		if platform, err = types.ParsePlatform(s); err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
	}

	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level %q", c.String("log-level")), exitUsage)
	}

	runID := uuid.New().String()
	logger := log.NewLogger(runID, level, c.App.ErrWriter)
	defer func() { _ = logger.Sync() }()
	collector := metrics.NewCollector(runID, platform.String())

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := render.NewConsole(c.App.Writer, !c.Bool("no-color") && render.IsTTY(os.Stdout))
	console.Welcome(runID, suitePaths)

	sched := scheduler.New(scheduler.Config{
		RunID:         runID,
		Compilers:     cfg.Compilers,
		OptLevels:     cfg.OptLevels,
		MaxRetries:    cfg.MaxRetries(),
		RunTimeout:    cfg.Timeout(),
		OutDir:        c.String("out-dir"),
		FailFast:      cfg.FailFast,
		Parallel:      cfg.Parallel,
		Runtime:       cfg.Runtime,
		RuntimeArgs:   cfg.RuntimeArgs,
		Platform:      platform,
		ProbeFlag:     cfg.ProbeFlag,
		VariantMarker: cfg.VariantMarker,
	}, scheduler.WithLogger(logger), scheduler.WithCollector(collector))

	result := sched.Run(ctx, suitePaths)
	snap := collector.Snapshot()
	report := scheduler.BuildReport(result, platform, &snap)

	console.Diagnostics(report)
	console.Summary(report)

	writeOutputs(cfg, report, snap, logger)
	archiveKept(ctx, cfg.Archive, report, logger)
	notify(ctx, cfg.Notify, result, platform, logger)

	if code := report.ExitCode; code != scheduler.ExitCodePassed {
		return cli.Exit("", code)
	}
	return nil
}

// selectSuites validates --suite/--suites/--out-dir and returns the suite
// paths to run.
func selectSuites(c *cli.Context) ([]string, error) {
	single, dir := c.String("suite"), c.String("suites")
	switch {
	case single != "" && dir != "":
		return nil, cli.Exit("--suite and --suites are mutually exclusive", exitUsage)
	case single == "" && dir == "":
		return nil, cli.Exit("one of --suite or --suites is required", exitUsage)
	case c.String("out-dir") != "" && single == "":
		return nil, cli.Exit("--out-dir can only be used with --suite", exitUsage)
	}
	if single != "" {
		return []string{single}, nil
	}

	paths, err := suite.Discover(dir)
	switch {
	case errors.Is(err, suite.ErrProvidedPathIsNotDir):
		return nil, cli.Exit(fmt.Sprintf("Provided path %s is not a directory!", dir), scheduler.ExitCodeStructural)
	case errors.Is(err, suite.ErrProvidedPathIsSuite):
		return nil, cli.Exit(fmt.Sprintf("Provided path %s is itself a suite. Use --suite to run it.", dir), scheduler.ExitCodeStructural)
	case err != nil:
		return nil, cli.Exit(err.Error(), scheduler.ExitCodeStructural)
	}
	return paths, nil
}

// writeOutputs writes the JSON report and the metrics textfile when
// configured. Failures are logged; they do not change the exit code.
func writeOutputs(cfg *config.Config, report *scheduler.Report, snap metrics.Snapshot, logger *log.Logger) {
	if cfg.Report != "" {
		if err := scheduler.WriteReport(report, cfg.Report); err != nil {
			logger.Error("failed to write report", map[string]any{"error": err.Error()})
		}
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(snap, cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", map[string]any{"error": err.Error()})
		}
	}
}

// archiveKept uploads every output directory kept for inspection.
func archiveKept(ctx context.Context, cfg config.ArchiveConfig, report *scheduler.Report, logger *log.Logger) {
	if !cfg.Enabled() {
		return
	}
	var kept []scheduler.ReportSuite
	for _, s := range report.Suites {
		if s.Persistent && s.OutDir != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return
	}

	uploader, err := archive.NewS3Uploader(ctx, archive.Config{
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		UsePathStyle: cfg.PathStyle,
	}, logger)
	if err != nil {
		logger.Error("archive disabled", map[string]any{"error": err.Error()})
		return
	}
	for _, s := range kept {
		n, err := uploader.UploadDir(ctx, report.RunID, s.Name, s.OutDir)
		if err != nil {
			logger.Error("archive upload failed", map[string]any{"suite": s.Name, "error": err.Error()})
			continue
		}
		logger.Info("archived output directory", map[string]any{"suite": s.Name, "files": n})
	}
}

// notify publishes the harness_completed event. It runs after
// cancellation too, so an interrupted run is still reported.
func notify(ctx context.Context, cfg config.NotifyConfig, result *scheduler.Result, platform types.Platform, logger *log.Logger) {
	if !cfg.Enabled() {
		return
	}
	a, err := newAdapter(cfg)
	if err != nil {
		logger.Error("notification disabled", map[string]any{"type": cfg.Type, "error": err.Error()})
		return
	}
	event := adapter.NewHarnessCompletedEvent(result, platform, time.Now())
	adapter.Notify(context.WithoutCancel(ctx), a, event, logger)
}

func newAdapter(cfg config.NotifyConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case config.NotifyWebhook:
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case config.NotifyRedis:
		retries := redis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown notify type %q", cfg.Type)
	}
}
