// Package metrics provides per-harness-run metrics collection.
//
// The Collector accumulates counters while the scheduler works through the
// suite matrix. It is a leaf package with no internal dependencies; the
// textfile exporter turns a Snapshot into Prometheus exposition format.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Work units
	UnitsStarted         int64 `json:"units_started"`
	UnitsPassed          int64 `json:"units_passed"`
	UnitsAllowedFailures int64 `json:"units_allowed_failures"`
	UnitsFailed          int64 `json:"units_failed"`
	UnitsAnomalies       int64 `json:"units_anomalies"`
	UnitsStructural      int64 `json:"units_structural"`
	UnitsSkipped         int64 `json:"units_skipped"`

	// Pipelines
	CompileAttempts int64 `json:"compile_attempts"`
	CompileRetries  int64 `json:"compile_retries"`
	RunTimeouts     int64 `json:"run_timeouts"`

	// Dimensions (informational, set at construction)
	RunID    string `json:"run_id"`
	Platform string `json:"platform"`
}

// Collector accumulates metrics during a single harness run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	unitsStarted         int64
	unitsPassed          int64
	unitsAllowedFailures int64
	unitsFailed          int64
	unitsAnomalies       int64
	unitsStructural      int64
	unitsSkipped         int64

	compileAttempts int64
	compileRetries  int64
	runTimeouts     int64

	runID    string
	platform string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(runID, platform string) *Collector {
	return &Collector{
		runID:    runID,
		platform: platform,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Work units ---

// IncUnitStarted records a unit picked up by a worker.
func (c *Collector) IncUnitStarted() {
	if c == nil {
		return
	}
	c.inc(&c.unitsStarted)
}

// IncUnitPassed records a unit that compiled and ran cleanly.
func (c *Collector) IncUnitPassed() {
	if c == nil {
		return
	}
	c.inc(&c.unitsPassed)
}

// IncUnitAllowedFailure records a failure the suite declared as expected.
func (c *Collector) IncUnitAllowedFailure() {
	if c == nil {
		return
	}
	c.inc(&c.unitsAllowedFailures)
}

// IncUnitFailed records an unallowed compile or run failure.
func (c *Collector) IncUnitFailed() {
	if c == nil {
		return
	}
	c.inc(&c.unitsFailed)
}

// IncUnitAnomaly records an expected run failure that did not occur.
func (c *Collector) IncUnitAnomaly() {
	if c == nil {
		return
	}
	c.inc(&c.unitsAnomalies)
}

// IncUnitStructural records a unit rejected before compilation.
func (c *Collector) IncUnitStructural() {
	if c == nil {
		return
	}
	c.inc(&c.unitsStructural)
}

// IncUnitSkipped records a unit never started because of fail-fast
// or cancellation.
func (c *Collector) IncUnitSkipped() {
	if c == nil {
		return
	}
	c.inc(&c.unitsSkipped)
}

// --- Pipelines ---

// IncCompileAttempt records one compiler invocation.
func (c *Collector) IncCompileAttempt() {
	if c == nil {
		return
	}
	c.inc(&c.compileAttempts)
}

// IncCompileRetry records an attempt after a failed one.
func (c *Collector) IncCompileRetry() {
	if c == nil {
		return
	}
	c.inc(&c.compileRetries)
}

// IncRunTimeout records a run killed for exceeding its timeout.
func (c *Collector) IncRunTimeout() {
	if c == nil {
		return
	}
	c.inc(&c.runTimeouts)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		UnitsStarted:         c.unitsStarted,
		UnitsPassed:          c.unitsPassed,
		UnitsAllowedFailures: c.unitsAllowedFailures,
		UnitsFailed:          c.unitsFailed,
		UnitsAnomalies:       c.unitsAnomalies,
		UnitsStructural:      c.unitsStructural,
		UnitsSkipped:         c.unitsSkipped,

		CompileAttempts: c.compileAttempts,
		CompileRetries:  c.compileRetries,
		RunTimeouts:     c.runTimeouts,

		RunID:    c.runID,
		Platform: c.platform,
	}
}
