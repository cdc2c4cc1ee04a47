package types

// Version is the canonical project version.
// The CLI, the run report and the completion event share this version.
const Version = "0.3.0"

// ReportVersion is the schema version stamped on run reports and
// completion events. It moves in lockstep with Version.
const ReportVersion = Version
