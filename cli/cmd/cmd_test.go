package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/torture/cli/config"
	"github.com/pithecene-io/torture/types"
)

// newTestApp returns an app with every command whose exit errors are
// returned to the test instead of exiting the process.
func newTestApp(stdout, stderr *bytes.Buffer, extra ...*cli.Command) *cli.App {
	return &cli.App{
		Name:           "torture",
		Writer:         stdout,
		ErrWriter:      stderr,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: append([]*cli.Command{
			RunCommand(),
			ShowConfigCommand(),
			InspectCommand(),
			VersionCommand("test"),
		}, extra...),
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitCoder cli.ExitCoder
	if !errors.As(err, &exitCoder) {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	return exitCoder.ExitCode()
}

// captureConfig runs harnessConfig under a throwaway command.
func captureConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg    *config.Config
		cfgErr error
	)
	probe := &cli.Command{
		Name:  "probe",
		Flags: harnessFlags(),
		Action: func(c *cli.Context) error {
			cfg, cfgErr = harnessConfig(c)
			return nil
		},
	}
	var stdout, stderr bytes.Buffer
	app := newTestApp(&stdout, &stderr, probe)
	if err := app.Run(append([]string{"torture", "probe"}, args...)); err != nil {
		t.Fatalf("app run: %v", err)
	}
	return cfg, cfgErr
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "torture.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestHarnessConfig_FlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
compilers: [elm]
opt-levels: [dev]
compiler-max-retries: 4
run-timeout: 30s
report: from-file.json
`)

	cfg, err := captureConfig(t,
		"--config", path,
		"--compiler", "lamdera", "--compiler", "elm",
		"--opt-level", "optimize",
		"--run-timeout", "2s",
		"--fail-fast",
	)
	if err != nil {
		t.Fatalf("harnessConfig: %v", err)
	}

	if got := cfg.Compilers; len(got) != 2 || got[0] != "lamdera" || got[1] != "elm" {
		t.Errorf("Compilers = %v", got)
	}
	if got := cfg.OptLevels; len(got) != 1 || got[0] != types.OptOptimize {
		t.Errorf("OptLevels = %v", got)
	}
	if cfg.Timeout() != 2*time.Second {
		t.Errorf("Timeout = %s, want 2s", cfg.Timeout())
	}
	if cfg.MaxRetries() != 4 {
		t.Errorf("MaxRetries = %d, want file value 4", cfg.MaxRetries())
	}
	if !cfg.FailFast {
		t.Error("FailFast should be set from the flag")
	}
	if cfg.Report != "from-file.json" {
		t.Errorf("Report = %q", cfg.Report)
	}
}

func TestHarnessConfig_ExplicitZeroRetries(t *testing.T) {
	cfg, err := captureConfig(t, "--config", writeConfig(t, "compiler-max-retries: 3\n"), "--compiler-max-retries", "0")
	if err != nil {
		t.Fatalf("harnessConfig: %v", err)
	}
	if cfg.MaxRetries() != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries())
	}
}

func TestHarnessConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
	}{
		{"bad opt level", func(*testing.T) []string { return []string{"--opt-level", "fast"} }},
		{"negative parallel", func(*testing.T) []string { return []string{"--parallel", "-2"} }},
		{"missing config file", func(*testing.T) []string { return []string{"--config", "/definitely/not/here.yaml"} }},
		{"invalid config file", func(t *testing.T) []string {
			return []string{"--config", writeConfig(t, "notify:\n  type: carrier-pigeon\n")}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := captureConfig(t, tt.args(t)...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadOnlyCommands_RejectBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"version tui", []string{"version", "--tui"}},
		{"show-config tui", []string{"show-config", "--tui"}},
		{"show-config invalid", []string{"show-config", "--parallel", "-1"}},
		{"inspect run without report", []string{"inspect", "run"}},
		{"inspect run missing report", []string{"inspect", "run", "/nope/report.json"}},
		{"inspect suite without name", []string{"inspect", "suite", "report.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := newTestApp(&stdout, &stderr).Run(append([]string{"torture"}, tt.args...))
			if got := exitCode(t, err); got != exitUsage {
				t.Errorf("exit code = %d, want %d (err %v)", got, exitUsage, err)
			}
		})
	}
}
