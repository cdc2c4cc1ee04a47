// Package main provides the torture CLI entrypoint.
//
// Usage:
//
//	torture <command> [subcommand] [options]
//
// Exit codes for `run` are the OR of every unit's outcome:
//   - 0x00: every unit passed or failed as allowed
//   - 0x21: a suite failed to compile
//   - 0x22: a compiled suite failed at run time
//   - 0x24: a suite expected to fail at run time did not
//   - 0x28: a suite, its descriptor or a compiler could not be used
//
// Invalid flags or configuration exit with 1.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/cli/cmd"
	"github.com/pithecene-io/torture/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "torture",
		Usage:          "Conformance and regression harness for Elm compilers",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.ShowConfigCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is empty; nothing to print.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
