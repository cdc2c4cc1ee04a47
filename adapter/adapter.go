// Package adapter publishes harness completion notifications to downstream
// systems such as CI dashboards or chat bots.
//
// Notification is best effort: a failed publish is logged and never changes
// the harness exit code.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/torture/log"
	"github.com/pithecene-io/torture/scheduler"
	"github.com/pithecene-io/torture/types"
)

// EventType names the only event published.
const EventType = "harness_completed"

// HarnessCompletedEvent is the payload published when a harness run ends.
type HarnessCompletedEvent struct {
	Version      string   `json:"version"`
	EventType    string   `json:"event_type"` // always "harness_completed"
	RunID        string   `json:"run_id"`
	Platform     string   `json:"platform"`
	Suites       int      `json:"suites"`
	Units        int      `json:"units"`
	Failures     int      `json:"failures"`
	FailedSuites []string `json:"failed_suites,omitempty"`
	ExitCode     int      `json:"exit_code"`
	Aborted      bool     `json:"aborted,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
	Timestamp    string   `json:"timestamp"` // RFC 3339
}

// NewHarnessCompletedEvent summarises a run result.
func NewHarnessCompletedEvent(result *scheduler.Result, platform types.Platform, now time.Time) *HarnessCompletedEvent {
	event := &HarnessCompletedEvent{
		Version:    types.Version,
		EventType:  EventType,
		RunID:      result.RunID,
		Platform:   platform.String(),
		Suites:     len(result.Suites),
		Units:      result.Units(),
		ExitCode:   result.ExitCode(),
		Aborted:    result.Aborted,
		DurationMs: result.Duration.Milliseconds(),
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
	for _, s := range result.Suites {
		failed := false
		for _, u := range s.Units {
			if u.Status.Failed() {
				event.Failures++
				failed = true
			}
		}
		if failed {
			event.FailedSuites = append(event.FailedSuites, s.Name)
		}
	}
	return event
}

// Adapter publishes harness completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a harness completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *HarnessCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BackoffBase is the delay before the first retry; each further retry
// doubles it.
const BackoffBase = 500 * time.Millisecond

// Retry calls attempt once plus up to retries more times with exponential
// backoff. A failure for which permanent returns true stops immediately.
// Errors are prefixed with name.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BackoffBase
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Notify publishes event through a and closes it. Failures are logged.
func Notify(ctx context.Context, a Adapter, event *HarnessCompletedEvent, logger *log.Logger) {
	if logger == nil {
		logger = log.Nop()
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close notification adapter", map[string]any{"error": err.Error()})
		}
	}()

	if err := a.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish harness notification", map[string]any{
			"error":  err.Error(),
			"run_id": event.RunID,
		})
		return
	}
	logger.Info("published harness notification", map[string]any{
		"run_id":    event.RunID,
		"exit_code": event.ExitCode,
	})
}
