// Package cmd provides CLI commands for the torture binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/cli/config"
	"github.com/pithecene-io/torture/types"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode (inspect only).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// harnessFlags are the flags that feed the harness configuration. They
// override values from the config file.
func harnessFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file (default ./" + config.DefaultFile + " when present)",
		},
		&cli.StringSliceFlag{
			Name:  "compiler",
			Usage: "Compiler name or path to test (repeatable, default elm)",
		},
		&cli.StringSliceFlag{
			Name:  "opt-level",
			Usage: "Optimization level to test: debug, dev, optimize (repeatable, default dev)",
		},
		&cli.StringFlag{
			Name:  "runtime",
			Usage: "JavaScript runtime used to run compiled suites (default node)",
		},
		&cli.IntFlag{
			Name:  "compiler-max-retries",
			Usage: "Attempts per compilation before giving up (default 1)",
		},
		&cli.DurationFlag{
			Name:  "run-timeout",
			Usage: "Kill a compiled suite that runs longer than this (default 10s)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Number of units run concurrently (default: number of CPUs)",
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "Stop starting units after the first unallowed failure",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (- for stderr)",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write run metrics in Prometheus text format to this path",
		},
	}
}

// harnessConfig loads the config file and applies flag overrides.
func harnessConfig(c *cli.Context) (*config.Config, error) {
	file, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, err
	}

	override := &config.Config{
		Compilers:   c.StringSlice("compiler"),
		Runtime:     c.String("runtime"),
		Parallel:    c.Int("parallel"),
		FailFast:    c.Bool("fail-fast"),
		Report:      c.String("report"),
		MetricsFile: c.String("metrics-file"),
	}
	for _, s := range c.StringSlice("opt-level") {
		level, err := types.ParseOptLevel(s)
		if err != nil {
			return nil, err
		}
		override.OptLevels = append(override.OptLevels, level)
	}
	if c.IsSet("compiler-max-retries") {
		n := c.Int("compiler-max-retries")
		override.CompilerMaxRetries = &n
	}
	if c.IsSet("run-timeout") {
		override.RunTimeout = config.Duration{Duration: c.Duration("run-timeout")}
	}

	merged := file.Merge(override)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}
