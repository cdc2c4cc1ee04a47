package reader

import (
	"time"

	"github.com/pithecene-io/torture/scheduler"
)

// SuiteOutcome summarises the units of one suite.
type SuiteOutcome string

// Suite outcomes, from best to worst.
const (
	OutcomeSuccess        SuiteOutcome = "success"
	OutcomeSkipped        SuiteOutcome = "skipped"
	OutcomeAllowedFailure SuiteOutcome = "allowed failure"
	OutcomeUnexpectedPass SuiteOutcome = "success when failure expected"
	OutcomeFailure        SuiteOutcome = "failure"
)

// RunSummary is the inspect view of a whole report.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  string         `json:"duration"`
	Platform  string         `json:"platform"`
	ExitCode  string         `json:"exit_code"`
	Aborted   bool           `json:"aborted"`
	Units     int            `json:"units"`
	Failures  int            `json:"failures"`
	Suites    []SuiteSummary `json:"suites"`
}

// SuiteSummary is one row of the run summary.
type SuiteSummary struct {
	Name     string       `json:"name"`
	Outcome  SuiteOutcome `json:"outcome"`
	Units    int          `json:"units"`
	Failures int          `json:"failures"`
	ExitCode string       `json:"exit_code"`
	OutDir   string       `json:"out_dir,omitempty"`
}

// UnitRow is one unit in the inspect view of a suite.
type UnitRow struct {
	Compiler string           `json:"compiler"`
	Variant  string           `json:"variant"`
	OptLevel string           `json:"opt_level"`
	Status   scheduler.Status `json:"status"`
	ExitCode string           `json:"exit_code"`
	Duration string           `json:"duration"`
	Message  string           `json:"message,omitempty"`
}
