package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/cli/render"
)

// ShowConfigCommand returns the show-config command, which prints the
// effective configuration a run with the same flags would use.
func ShowConfigCommand() *cli.Command {
	return &cli.Command{
		Name:   "show-config",
		Usage:  "Print the effective configuration (config file merged with flags and defaults)",
		Flags:  append(harnessFlags(), FormatFlag, NoColorFlag, TUIFlag),
		Action: showConfigAction,
	}
}

func showConfigAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for show-config command", exitUsage)
	}

	cfg, err := harnessConfig(c)
	if err != nil {
		return cli.Exit("invalid configuration: "+err.Error(), exitUsage)
	}

	r, err := render.NewRendererWithDefault(c, render.FormatYAML)
	if err != nil {
		return err
	}
	return r.Render(cfg.Effective())
}
