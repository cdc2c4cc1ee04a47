// Package reader provides the read side of the torture CLI: it loads run
// reports written by `torture run --report` and derives the views shown by
// inspect and by the closing console summary.
package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/torture/scheduler"
)

// ErrSuiteNotFound is returned when a report has no suite of that name.
var ErrSuiteNotFound = errors.New("suite not found in report")

// Load reads a JSON run report.
func Load(path string) (*scheduler.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read report %q: %w", path, err)
	}

	var report scheduler.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid report %s: %w", path, err)
	}
	// The write path always populates these.
	if report.Version == "" {
		return nil, fmt.Errorf("invalid report %s: missing version", path)
	}
	if report.RunID == "" {
		return nil, fmt.Errorf("invalid report %s: missing run_id", path)
	}
	return &report, nil
}

// Outcome classifies a suite from the statuses of its units.
func Outcome(units []scheduler.ReportUnit) SuiteOutcome {
	var allowed, unexpectedPass bool
	skipped := 0
	for _, u := range units {
		switch u.Status {
		case scheduler.StatusCompileFailure, scheduler.StatusRunFailure, scheduler.StatusStructural:
			return OutcomeFailure
		case scheduler.StatusExpectedRunFailure:
			unexpectedPass = true
		case scheduler.StatusAllowedCompileFailure, scheduler.StatusAllowedRunFailure:
			allowed = true
		case scheduler.StatusSkipped:
			skipped++
		}
	}
	switch {
	case unexpectedPass:
		return OutcomeUnexpectedPass
	case allowed:
		return OutcomeAllowedFailure
	case len(units) > 0 && skipped == len(units):
		return OutcomeSkipped
	default:
		return OutcomeSuccess
	}
}

// Summarize builds the run summary of a report.
func Summarize(report *scheduler.Report) *RunSummary {
	summary := &RunSummary{
		RunID:     report.RunID,
		StartedAt: report.StartedAt,
		Duration:  formatMs(report.DurationMs),
		Platform:  report.Platform,
		ExitCode:  FormatExitCode(report.ExitCode),
		Aborted:   report.Aborted,
		Suites:    make([]SuiteSummary, 0, len(report.Suites)),
	}
	for _, s := range report.Suites {
		row := summarizeSuite(s)
		summary.Units += row.Units
		summary.Failures += row.Failures
		summary.Suites = append(summary.Suites, row)
	}
	return summary
}

func summarizeSuite(s scheduler.ReportSuite) SuiteSummary {
	row := SuiteSummary{
		Name:     s.Name,
		Outcome:  Outcome(s.Units),
		Units:    len(s.Units),
		ExitCode: FormatExitCode(s.ExitCode),
	}
	if s.Persistent {
		row.OutDir = s.OutDir
	}
	for _, u := range s.Units {
		if u.Status.Failed() {
			row.Failures++
		}
	}
	return row
}

// Suite finds a suite by name, or by path when no name matches.
func Suite(report *scheduler.Report, name string) (*scheduler.ReportSuite, error) {
	for i := range report.Suites {
		if report.Suites[i].Name == name {
			return &report.Suites[i], nil
		}
	}
	for i := range report.Suites {
		if report.Suites[i].Path == name {
			return &report.Suites[i], nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrSuiteNotFound)
}

// Units returns the unit rows of a suite. With failedOnly, units that
// passed or were skipped are left out.
func Units(s *scheduler.ReportSuite, failedOnly bool) []UnitRow {
	rows := make([]UnitRow, 0, len(s.Units))
	for _, u := range s.Units {
		if failedOnly && (u.Status == scheduler.StatusPassed || u.Status == scheduler.StatusSkipped) {
			continue
		}
		rows = append(rows, UnitRow{
			Compiler: u.Compiler,
			Variant:  u.Variant.String(),
			OptLevel: u.OptLevel.String(),
			Status:   u.Status,
			ExitCode: FormatExitCode(u.ExitCode),
			Duration: formatMs(u.DurationMs),
			Message:  firstLine(u.Message),
		})
	}
	return rows
}

// FormatExitCode renders a harness exit code the way the bits are
// documented.
func FormatExitCode(code int) string {
	return fmt.Sprintf("0x%02x", code)
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
