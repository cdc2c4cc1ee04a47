package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/cli/reader"
	"github.com/pithecene-io/torture/cli/render"
	"github.com/pithecene-io/torture/cli/tui"
)

// InspectCommand returns the inspect command with subcommands. Inspect
// reads a report written by `torture run --report`.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a run report (run, suite)",
		Subcommands: []*cli.Command{
			inspectRunCommand(),
			inspectSuiteCommand(),
		},
	}
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Summarise every suite of a run",
		ArgsUsage: "<report.json>",
		Flags:     ReadOnlyFlags(),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("report path required", exitUsage)
	}
	report, err := reader.Load(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectRun, report)
	}

	summary := reader.Summarize(report)
	if r.Format() == render.FormatTable {
		return r.Render(summary.Suites)
	}
	return r.Render(summary)
}

func inspectSuiteCommand() *cli.Command {
	return &cli.Command{
		Name:      "suite",
		Usage:     "Show every unit of one suite",
		ArgsUsage: "<report.json> <suite>",
		Flags: append(ReadOnlyFlags(), &cli.BoolFlag{
			Name:  "failed",
			Usage: "Only show units that did not pass",
		}),
		Action: inspectSuiteAction,
	}
}

func inspectSuiteAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("report path and suite name required", exitUsage)
	}
	report, err := reader.Load(c.Args().Get(0))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	s, err := reader.Suite(report, c.Args().Get(1))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectSuite, s)
	}
	return r.Render(reader.Units(s, c.Bool("failed")))
}
