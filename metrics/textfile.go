package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "torture"

// Registry builds a fresh Prometheus registry holding the snapshot's
// counters, labelled with its dimensions.
func (s Snapshot) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": s.RunID, "platform": s.Platform}

	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "units_total",
		Help:        "Work units by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})

	outcomes := []struct {
		outcome string
		value   int64
	}{
		{"started", s.UnitsStarted},
		{"passed", s.UnitsPassed},
		{"allowed_failure", s.UnitsAllowedFailures},
		{"failed", s.UnitsFailed},
		{"anomaly", s.UnitsAnomalies},
		{"structural", s.UnitsStructural},
		{"skipped", s.UnitsSkipped},
	}
	for _, o := range outcomes {
		units.WithLabelValues(o.outcome).Add(float64(o.value))
	}

	counters := []struct {
		name  string
		help  string
		value int64
	}{
		{"compile_attempts_total", "Compiler invocations.", s.CompileAttempts},
		{"compile_retries_total", "Compiler invocations after a failed attempt.", s.CompileRetries},
		{"run_timeouts_total", "Runs killed after exceeding the run timeout.", s.RunTimeouts},
	}

	collectors := []prometheus.Collector{units}
	for _, c := range counters {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        c.name,
			Help:        c.help,
			ConstLabels: labels,
		})
		counter.Add(float64(c.value))
		collectors = append(collectors, counter)
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return reg, nil
}

// WriteTextfile writes the snapshot in Prometheus text exposition format,
// suitable for node_exporter's textfile collector.
func WriteTextfile(s Snapshot, path string) error {
	reg, err := s.Registry()
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
