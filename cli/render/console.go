package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pithecene-io/torture/cli/reader"
	"github.com/pithecene-io/torture/cli/tui"
	"github.com/pithecene-io/torture/scheduler"
	"github.com/pithecene-io/torture/types"
)

// Console writes the human-readable report of `torture run`: a welcome
// banner, one diagnostic block per unit that did not pass, and a closing
// summary table.
type Console struct {
	out   io.Writer
	color bool
}

// NewConsole creates a console writing to out. Statuses are coloured when
// color is set.
func NewConsole(out io.Writer, color bool) *Console {
	return &Console{out: out, color: color}
}

// Welcome prints the banner listing the suites about to run.
func (c *Console) Welcome(runID string, suites []string) {
	fmt.Fprintf(c.out, "torture %s (run %s)\n\n", types.Version, runID)
	fmt.Fprintf(c.out, "Running the following %d SSCCE%s:\n", len(suites), plural(len(suites)))
	for _, s := range suites {
		fmt.Fprintf(c.out, "    %s\n", s)
	}
	fmt.Fprintln(c.out)
}

// Diagnostics prints a block for every unit that did not pass.
func (c *Console) Diagnostics(report *scheduler.Report) {
	for _, s := range report.Suites {
		for _, u := range s.Units {
			if u.Status == scheduler.StatusPassed || u.Status == scheduler.StatusSkipped {
				continue
			}
			c.unit(s, u)
		}
	}
}

func (c *Console) unit(s scheduler.ReportSuite, u scheduler.ReportUnit) {
	label := unitLabel(u)

	var body strings.Builder
	switch u.Status {
	case scheduler.StatusAllowedCompileFailure, scheduler.StatusCompileFailure:
		fmt.Fprintf(c.out, "Failed to compile suite %s (%s).\n", s.Path, label)
		body.WriteString(u.Message)
		writeProcess(&body, u.Process)
	case scheduler.StatusAllowedRunFailure, scheduler.StatusRunFailure:
		fmt.Fprintf(c.out, "Suite %s failed at run time (%s).\n", s.Path, label)
		body.WriteString(u.Message)
		writeProcess(&body, u.Process)
		if s.Persistent && u.Status == scheduler.StatusRunFailure {
			fmt.Fprintf(&body, "\n\nTo inspect the built files that caused this error see:\n  %s", s.OutDir)
		}
	case scheduler.StatusExpectedRunFailure:
		fmt.Fprintf(c.out, "Suite %s was expected to fail but did not! (%s)\n", s.Path, label)
	default:
		fmt.Fprintf(c.out, "Suite %s could not be tested (%s).\n", s.Path, label)
		body.WriteString(u.Message)
	}

	if body.Len() > 0 {
		fmt.Fprint(c.out, indent(body.String()))
	}
	if u.Allowed {
		fmt.Fprintln(c.out, c.style(tui.WarningStyle, "Failure allowed, continuing..."))
	}
	fmt.Fprintln(c.out)
}

func unitLabel(u scheduler.ReportUnit) string {
	if u.Variant == "" {
		return fmt.Sprintf("%s --%s", u.Compiler, u.OptLevel)
	}
	return fmt.Sprintf("%s (%s) --%s", u.Compiler, u.Variant, u.OptLevel)
}

func writeProcess(b *strings.Builder, p *scheduler.ReportProcess) {
	if p == nil {
		return
	}
	exit := fmt.Sprintf("%d", p.ExitCode)
	if p.TimedOut {
		exit = "killed after timeout"
	}
	fmt.Fprintf(b, "\n = Exit code: %s =\n = Std Out =\n%s\n = Std Err =\n%s",
		exit, strings.TrimRight(p.Stdout, "\n"), strings.TrimRight(p.Stderr, "\n"))
}

// Summary prints the closing table of suite outcomes.
func (c *Console) Summary(report *scheduler.Report) {
	summary := reader.Summarize(report)

	fmt.Fprintf(c.out, "torture has run the following %d SSCCE%s:\n", len(summary.Suites), plural(len(summary.Suites)))

	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.AppendHeader(table.Row{"Suite", "Outcome", "Units", "Failed", "Exit"})
	for _, s := range summary.Suites {
		t.AppendRow(table.Row{
			s.Name,
			c.style(tui.OutcomeStyle(s.Outcome), string(s.Outcome)),
			fmt.Sprint(s.Units),
			fmt.Sprint(s.Failures),
			s.ExitCode,
		})
	}
	fmt.Fprintln(c.out, t.Render())

	for _, s := range summary.Suites {
		if s.OutDir != "" {
			fmt.Fprintf(c.out, "Kept %s for inspection: %s\n", s.Name, s.OutDir)
		}
	}
	if summary.Aborted {
		fmt.Fprintln(c.out, c.style(tui.WarningStyle, "Run aborted: remaining units were skipped."))
	}
	exit := fmt.Sprintf("Exit code %s after %s.", summary.ExitCode, summary.Duration)
	if report.ExitCode != scheduler.ExitCodePassed {
		exit = c.style(tui.ErrorStyle, exit)
	}
	fmt.Fprintln(c.out, exit)
}

func (c *Console) style(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "    " + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
