package reader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/torture/scheduler"
	"github.com/pithecene-io/torture/types"
)

func sampleReport() *scheduler.Report {
	return &scheduler.Report{
		Version:    types.ReportVersion,
		RunID:      "run-42",
		StartedAt:  time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
		DurationMs: 2500,
		ExitCode:   scheduler.ExitCodeRunFailure,
		Platform:   "linux",
		Suites: []scheduler.ReportSuite{
			{
				Path: "suites/records", Name: "records", ExitCode: 0,
				Units: []scheduler.ReportUnit{
					{Compiler: "elm", Variant: types.VariantOfficial, OptLevel: types.OptDev, Status: scheduler.StatusPassed, DurationMs: 120},
					{Compiler: "elm", Variant: types.VariantOfficial, OptLevel: types.OptOptimize, Status: scheduler.StatusAllowedRunFailure, Allowed: true, DurationMs: 130},
				},
			},
			{
				Path: "suites/ports", Name: "ports", ExitCode: scheduler.ExitCodeRunFailure,
				OutDir: "/tmp/torture-ports-1", Persistent: true,
				Units: []scheduler.ReportUnit{
					{Compiler: "elm", Variant: types.VariantOfficial, OptLevel: types.OptDev, Status: scheduler.StatusRunFailure,
						ExitCode: scheduler.ExitCodeRunFailure, Message: "run failed: runtime exited with code 1\nstack", DurationMs: 900},
					{Compiler: "elm", OptLevel: types.OptOptimize, Status: scheduler.StatusSkipped},
				},
			},
		},
	}
}

func writeReport(t *testing.T, report *scheduler.Report) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	if err := scheduler.WriteReport(report, path); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

func TestLoad_RoundTrip(t *testing.T) {
	report, err := Load(writeReport(t, sampleReport()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report.RunID != "run-42" || len(report.Suites) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := report.Suites[1].Units[0].Variant; got != types.VariantOfficial {
		t.Errorf("variant = %q", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", filepath.Join(dir, "nope.json"), "cannot read report"},
		{"not json", write("garbage.json", "{"), "invalid report"},
		{"no version", write("noversion.json", `{"run_id": "r"}`), "missing version"},
		{"no run id", write("norun.json", `{"version": "0.3.0"}`), "missing run_id"},
		{"bad opt level", write("badopt.json", `{"version": "0.3.0", "run_id": "r", "suites": [{"units": [{"opt_level": "fast"}]}]}`), "invalid opt level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestOutcome(t *testing.T) {
	unit := func(s scheduler.Status) scheduler.ReportUnit { return scheduler.ReportUnit{Status: s} }

	tests := []struct {
		name  string
		units []scheduler.ReportUnit
		want  SuiteOutcome
	}{
		{"empty", nil, OutcomeSuccess},
		{"all passed", []scheduler.ReportUnit{unit(scheduler.StatusPassed), unit(scheduler.StatusPassed)}, OutcomeSuccess},
		{"allowed compile", []scheduler.ReportUnit{unit(scheduler.StatusPassed), unit(scheduler.StatusAllowedCompileFailure)}, OutcomeAllowedFailure},
		{"allowed run", []scheduler.ReportUnit{unit(scheduler.StatusAllowedRunFailure)}, OutcomeAllowedFailure},
		{"unexpected pass", []scheduler.ReportUnit{unit(scheduler.StatusAllowedRunFailure), unit(scheduler.StatusExpectedRunFailure)}, OutcomeUnexpectedPass},
		{"failure wins", []scheduler.ReportUnit{unit(scheduler.StatusExpectedRunFailure), unit(scheduler.StatusCompileFailure)}, OutcomeFailure},
		{"structural", []scheduler.ReportUnit{unit(scheduler.StatusStructural)}, OutcomeFailure},
		{"all skipped", []scheduler.ReportUnit{unit(scheduler.StatusSkipped)}, OutcomeSkipped},
		{"partly skipped", []scheduler.ReportUnit{unit(scheduler.StatusPassed), unit(scheduler.StatusSkipped)}, OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.units); got != tt.want {
				t.Errorf("Outcome = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleReport())

	if summary.ExitCode != "0x22" || summary.Duration != "2.5s" || summary.Platform != "linux" {
		t.Errorf("header = %+v", summary)
	}
	if summary.Units != 4 || summary.Failures != 1 {
		t.Errorf("units/failures = %d/%d", summary.Units, summary.Failures)
	}
	if len(summary.Suites) != 2 {
		t.Fatalf("suites = %d", len(summary.Suites))
	}
	records, ports := summary.Suites[0], summary.Suites[1]
	if records.Outcome != OutcomeAllowedFailure || records.OutDir != "" {
		t.Errorf("records = %+v", records)
	}
	if ports.Outcome != OutcomeFailure || ports.OutDir != "/tmp/torture-ports-1" || ports.ExitCode != "0x22" {
		t.Errorf("ports = %+v", ports)
	}
}

func TestSuite_LookupByNameOrPath(t *testing.T) {
	report := sampleReport()

	s, err := Suite(report, "ports")
	if err != nil || s.Path != "suites/ports" {
		t.Errorf("by name: %v %v", s, err)
	}
	s, err = Suite(report, "suites/records")
	if err != nil || s.Name != "records" {
		t.Errorf("by path: %v %v", s, err)
	}
	if _, err := Suite(report, "closures"); !errors.Is(err, ErrSuiteNotFound) {
		t.Errorf("missing suite: %v", err)
	}
}

func TestUnits(t *testing.T) {
	s := &sampleReport().Suites[1]

	all := Units(s, false)
	if len(all) != 2 {
		t.Fatalf("rows = %d", len(all))
	}
	failed := Units(s, true)
	if len(failed) != 1 {
		t.Fatalf("failed rows = %d", len(failed))
	}
	row := failed[0]
	if row.Message != "run failed: runtime exited with code 1" {
		t.Errorf("message = %q", row.Message)
	}
	if row.Variant != "official" || row.OptLevel != "dev" || row.Duration != "900ms" || row.ExitCode != "0x22" {
		t.Errorf("row = %+v", row)
	}
}
