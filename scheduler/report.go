package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/pithecene-io/torture/metrics"
	"github.com/pithecene-io/torture/runtime"
	"github.com/pithecene-io/torture/types"
)

// Report is the structured JSON report written by --report.
type Report struct {
	Version    string            `json:"version"`
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
	ExitCode   int               `json:"exit_code"`
	Platform   string            `json:"platform"`
	Aborted    bool              `json:"aborted,omitempty"`
	Suites     []ReportSuite     `json:"suites"`
	Metrics    *metrics.Snapshot `json:"metrics,omitempty"`
}

// ReportSuite holds one suite's units.
type ReportSuite struct {
	Path       string       `json:"path"`
	Name       string       `json:"name"`
	OutDir     string       `json:"out_dir,omitempty"`
	Persistent bool         `json:"persistent,omitempty"`
	ExitCode   int          `json:"exit_code"`
	Units      []ReportUnit `json:"units"`
}

// ReportUnit is one row of the matrix.
type ReportUnit struct {
	Compiler   string                `json:"compiler"`
	Variant    types.CompilerVariant `json:"variant,omitempty"`
	OptLevel   types.OptLevel        `json:"opt_level"`
	Status     Status                `json:"status"`
	Allowed    bool                  `json:"allowed,omitempty"`
	Kind       string                `json:"kind,omitempty"`
	Message    string                `json:"message,omitempty"`
	ExitCode   int                   `json:"exit_code"`
	DurationMs int64                 `json:"duration_ms"`
	Process    *ReportProcess        `json:"process,omitempty"`
}

// ReportProcess is the captured output of the failing process, with
// terminal escape sequences removed.
type ReportProcess struct {
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// BuildReport composes a Report from a run result and metrics snapshot.
func BuildReport(result *Result, platform types.Platform, snap *metrics.Snapshot) *Report {
	report := &Report{
		Version:    types.ReportVersion,
		RunID:      result.RunID,
		StartedAt:  result.StartedAt.UTC(),
		DurationMs: result.Duration.Milliseconds(),
		ExitCode:   result.ExitCode(),
		Platform:   platform.String(),
		Aborted:    result.Aborted,
		Suites:     make([]ReportSuite, 0, len(result.Suites)),
		Metrics:    snap,
	}

	for _, s := range result.Suites {
		rs := ReportSuite{
			Path:       s.Suite,
			Name:       s.Name,
			OutDir:     s.OutDir,
			Persistent: s.Persistent,
			ExitCode:   s.ExitCode(),
			Units:      make([]ReportUnit, 0, len(s.Units)),
		}
		for _, u := range s.Units {
			rs.Units = append(rs.Units, reportUnit(u))
		}
		report.Suites = append(report.Suites, rs)
	}
	return report
}

func reportUnit(u *UnitResult) ReportUnit {
	row := ReportUnit{
		Compiler:   u.Key.Compiler,
		Variant:    u.Variant,
		OptLevel:   u.Key.OptLevel,
		Status:     u.Status,
		ExitCode:   u.Err.ExitCode(),
		DurationMs: u.Duration.Milliseconds(),
	}
	if u.Err == nil {
		return row
	}
	row.Allowed = u.Err.Allowed
	row.Kind = errorKind(u.Err)
	row.Message = stripansi.Strip(u.Err.Error())
	if out := u.Err.ProcessOutput(); out != nil {
		row.Process = &ReportProcess{
			ExitCode: out.ExitCode,
			TimedOut: out.TimedOut,
			Stdout:   stripansi.Strip(string(out.Stdout)),
			Stderr:   stripansi.Strip(string(out.Stderr)),
		}
	}
	return row
}

// errorKind names the most specific failure kind available.
func errorKind(e *UnitError) string {
	var cerr *runtime.CompileError
	if errors.As(e.Err, &cerr) {
		return string(e.Kind) + ":" + string(cerr.Kind)
	}
	var rerr *runtime.RunError
	if errors.As(e.Err, &rerr) {
		return string(e.Kind) + ":" + string(rerr.Kind)
	}
	return string(e.Kind)
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeReportTo writes report JSON to any writer.
func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
