// Package config loads and validates farol's configuration from file,
// environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Defaults applied when neither file nor environment provides a value.
const (
	DefaultInternerInitialCapacity = uint64(16)
	DefaultPrefilterEnabled        = false
	DefaultPrefilterExpected       = uint(65536)
	DefaultPrefilterFPRate         = 0.01

	DefaultOutputFormat = "table"
	DefaultOutputColor  = true

	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultTelemetrySampleRatio = 0.0
)

// Sentinel validation errors.
var (
	ErrInvalidFormat      = errors.New("config: output format must be table, yaml, or json")
	ErrInvalidLogLevel    = errors.New("config: unknown log level")
	ErrInvalidFPRate      = errors.New("config: prefilter false-positive rate must be in (0, 1)")
	ErrZeroExpected       = errors.New("config: prefilter expected strings must be positive")
	ErrZeroCapacity       = errors.New("config: interner initial capacity must be positive")
	ErrInvalidSampleRatio = errors.New("config: telemetry sample ratio must be in [0, 1]")
)

// knownFormats are the accepted output formats.
var knownFormats = []string{"table", "yaml", "json"}

// Config is the root configuration.
type Config struct {
	Interner  InternerConfig  `mapstructure:"interner"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// InternerConfig tunes the string interner backing the GBF reader.
type InternerConfig struct {
	// InitialCapacity is the entry capacity reserved at creation.
	InitialCapacity uint64 `mapstructure:"initial_capacity"`

	Prefilter PrefilterConfig `mapstructure:"prefilter"`
}

// PrefilterConfig tunes the optional Bloom pre-filter on interner lookups.
type PrefilterConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// ExpectedStrings sizes the filter.
	ExpectedStrings uint `mapstructure:"expected_strings"`

	// FalsePositiveRate is the target FP rate, in the open interval (0, 1).
	FalsePositiveRate float64 `mapstructure:"false_positive_rate"`
}

// OutputConfig controls command output rendering.
type OutputConfig struct {
	// Format is the default output format: table, yaml, or json.
	Format string `mapstructure:"format"`

	// Color enables ANSI colors on terminal output.
	Color bool `mapstructure:"color"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is the minimum slog severity: debug, info, warn, or error.
	Level string `mapstructure:"level"`

	// JSON switches the handler from text to JSON output.
	JSON bool `mapstructure:"json"`
}

// TelemetryConfig controls OpenTelemetry export and the diagnostics server.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address. Empty disables export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool `mapstructure:"otlp_insecure"`

	// SampleRatio is the trace sampling ratio in [0, 1]; zero keeps the
	// SDK default (parent-based, always-on root).
	SampleRatio float64 `mapstructure:"sample_ratio"`

	// MetricsAddr starts the /metrics and health diagnostics server when
	// non-empty, e.g. "localhost:9464".
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Validate checks cross-field constraints that the schema cannot express.
func (c *Config) Validate() error {
	if c.Interner.InitialCapacity == 0 {
		return ErrZeroCapacity
	}

	if c.Interner.Prefilter.Enabled {
		if c.Interner.Prefilter.ExpectedStrings == 0 {
			return ErrZeroExpected
		}

		fp := c.Interner.Prefilter.FalsePositiveRate
		if fp <= 0 || fp >= 1 {
			return ErrInvalidFPRate
		}
	}

	if !slices.Contains(knownFormats, c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	_, err := c.SlogLevel()
	if err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}

// SlogLevel parses the configured log level into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Log.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	return level, nil
}
