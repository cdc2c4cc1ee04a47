package config

import (
	"errors"
	"fmt"
	goruntime "runtime"
	"slices"
	"time"

	"github.com/pithecene-io/torture/compiler"
	"github.com/pithecene-io/torture/runtime"
	"github.com/pithecene-io/torture/types"
)

// Config represents a torture.yaml configuration file.
// All values are optional and act as defaults for torture run flags.
// CLI flags always override config values.
type Config struct {
	Compilers          []string         `yaml:"compilers,omitempty"`
	Runtime            string           `yaml:"runtime,omitempty"`
	RuntimeArgs        []string         `yaml:"runtime-args,omitempty"`
	OptLevels          []types.OptLevel `yaml:"opt-levels,omitempty"`
	CompilerMaxRetries *int             `yaml:"compiler-max-retries,omitempty"`
	RunTimeout         Duration         `yaml:"run-timeout,omitempty"`
	Parallel           int              `yaml:"parallel,omitempty"`
	FailFast           bool             `yaml:"fail-fast,omitempty"`
	ProbeFlag          string           `yaml:"probe-flag,omitempty"`
	VariantMarker      string           `yaml:"variant-marker,omitempty"`
	Notify             NotifyConfig     `yaml:"notify,omitempty"`
	Archive            ArchiveConfig    `yaml:"archive,omitempty"`
	MetricsFile        string           `yaml:"metrics-file,omitempty"`
	Report             string           `yaml:"report,omitempty"`
}

// Notification types.
const (
	NotifyWebhook = "webhook"
	NotifyRedis   = "redis"
)

// NotifyConfig selects where the harness completion event is published.
type NotifyConfig struct {
	Type    string            `yaml:"type,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Enabled reports whether a notification target is configured.
func (n NotifyConfig) Enabled() bool { return n.Type != "" }

// ArchiveConfig uploads persistent output directories to S3.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path-style,omitempty"`
}

// Enabled reports whether archiving is configured.
func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// IsZero lets omitempty drop unset durations.
func (d Duration) IsZero() bool { return d.Duration == 0 }

// Validate checks values that cannot be caught while decoding.
func (c *Config) Validate() error {
	var errs []error
	if c.CompilerMaxRetries != nil && *c.CompilerMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("compiler-max-retries must be >= 0, got %d", *c.CompilerMaxRetries))
	}
	if c.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must be >= 0, got %d", c.Parallel))
	}
	switch c.Notify.Type {
	case "":
		if c.Notify.URL != "" {
			errs = append(errs, errors.New("notify.url set without notify.type"))
		}
	case NotifyWebhook, NotifyRedis:
		if c.Notify.URL == "" {
			errs = append(errs, fmt.Errorf("notify.url is required for %s notifications", c.Notify.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify.type %q (must be webhook or redis)", c.Notify.Type))
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = append(errs, fmt.Errorf("notify.retries must be >= 0, got %d", *c.Notify.Retries))
	}
	if c.Archive.Bucket == "" && (c.Archive.Prefix != "" || c.Archive.Region != "" || c.Archive.Endpoint != "") {
		errs = append(errs, errors.New("archive.bucket is required when archiving is configured"))
	}
	return errors.Join(errs...)
}

// Merge returns a copy of c with every value set in override taking
// precedence. Boolean switches can only be turned on.
func (c *Config) Merge(override *Config) *Config {
	merged := *c
	if override == nil {
		return &merged
	}
	if len(override.Compilers) > 0 {
		merged.Compilers = slices.Clone(override.Compilers)
	}
	if override.Runtime != "" {
		merged.Runtime = override.Runtime
	}
	if len(override.RuntimeArgs) > 0 {
		merged.RuntimeArgs = slices.Clone(override.RuntimeArgs)
	}
	if len(override.OptLevels) > 0 {
		merged.OptLevels = slices.Clone(override.OptLevels)
	}
	if override.CompilerMaxRetries != nil {
		n := *override.CompilerMaxRetries
		merged.CompilerMaxRetries = &n
	}
	if override.RunTimeout.Duration != 0 {
		merged.RunTimeout = override.RunTimeout
	}
	if override.Parallel != 0 {
		merged.Parallel = override.Parallel
	}
	merged.FailFast = c.FailFast || override.FailFast
	if override.ProbeFlag != "" {
		merged.ProbeFlag = override.ProbeFlag
	}
	if override.VariantMarker != "" {
		merged.VariantMarker = override.VariantMarker
	}
	if override.Notify.Enabled() {
		merged.Notify = override.Notify
	}
	if override.Archive.Enabled() {
		merged.Archive = override.Archive
	}
	if override.MetricsFile != "" {
		merged.MetricsFile = override.MetricsFile
	}
	if override.Report != "" {
		merged.Report = override.Report
	}
	return &merged
}

// CompilerNames returns the compilers to test.
func (c *Config) CompilerNames() []string {
	if len(c.Compilers) == 0 {
		return []string{"elm"}
	}
	return c.Compilers
}

// RuntimeName returns the JavaScript runtime executable.
func (c *Config) RuntimeName() string {
	if c.Runtime == "" {
		return runtime.DefaultRuntime
	}
	return c.Runtime
}

// RuntimeArguments returns the arguments placed before the entry script.
func (c *Config) RuntimeArguments() []string {
	if len(c.RuntimeArgs) == 0 {
		return runtime.DefaultRuntimeArgs
	}
	return c.RuntimeArgs
}

// Levels returns the optimization levels to test.
func (c *Config) Levels() []types.OptLevel {
	if len(c.OptLevels) == 0 {
		return []types.OptLevel{types.OptDev}
	}
	return c.OptLevels
}

// MaxRetries returns the compile attempt bound.
func (c *Config) MaxRetries() int {
	if c.CompilerMaxRetries == nil {
		return 1
	}
	return *c.CompilerMaxRetries
}

// Timeout returns the per-run timeout.
func (c *Config) Timeout() time.Duration {
	if c.RunTimeout.Duration == 0 {
		return runtime.DefaultTimeout
	}
	return c.RunTimeout.Duration
}

// Workers returns the worker pool size.
func (c *Config) Workers() int {
	if c.Parallel == 0 {
		return goruntime.NumCPU()
	}
	return c.Parallel
}

// Effective returns c with every default filled in, as used by a run.
func (c *Config) Effective() *Config {
	eff := *c
	retries := c.MaxRetries()
	eff.Compilers = c.CompilerNames()
	eff.Runtime = c.RuntimeName()
	eff.RuntimeArgs = c.RuntimeArguments()
	eff.OptLevels = c.Levels()
	eff.CompilerMaxRetries = &retries
	eff.RunTimeout = Duration{c.Timeout()}
	eff.Parallel = c.Workers()
	if eff.ProbeFlag == "" {
		eff.ProbeFlag = compiler.DefaultProbeFlag
	}
	if eff.VariantMarker == "" {
		eff.VariantMarker = compiler.DefaultVariantMarker
	}
	return &eff
}
