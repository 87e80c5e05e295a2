package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaelsamenezes/farol/internal/config"
)

// writeConfig writes contents to a temp .yaml file and returns its path.
func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "farol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultInternerInitialCapacity, cfg.Interner.InitialCapacity)
	assert.False(t, cfg.Interner.Prefilter.Enabled)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
interner:
  initial_capacity: 64
  prefilter:
    enabled: true
    expected_strings: 100000
    false_positive_rate: 0.001
output:
  format: yaml
log:
  level: debug
  json: true
`))
	require.NoError(t, err)

	assert.Equal(t, uint64(64), cfg.Interner.InitialCapacity)
	assert.True(t, cfg.Interner.Prefilter.Enabled)
	assert.Equal(t, uint(100000), cfg.Interner.Prefilter.ExpectedStrings)
	assert.InDelta(t, 0.001, cfg.Interner.Prefilter.FalsePositiveRate, 1e-9)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Log.JSON)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FAROL_OUTPUT_FORMAT", "json")

	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "table", cfg.Output.Format)
}

func TestLoad_SchemaRejections(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "unknown_key", contents: "internr:\n  initial_capacity: 4\n"},
		{name: "wrong_type", contents: "output:\n  color: sometimes\n"},
		{name: "format_out_of_enum", contents: "output:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.contents))
			assert.ErrorIs(t, err, config.ErrSchema)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() config.Config {
		return config.Config{
			Interner: config.InternerConfig{
				InitialCapacity: 16,
				Prefilter: config.PrefilterConfig{
					Enabled:           true,
					ExpectedStrings:   1024,
					FalsePositiveRate: 0.01,
				},
			},
			Output: config.OutputConfig{Format: "table"},
			Log:    config.LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{
			name:    "zero_capacity",
			mutate:  func(c *config.Config) { c.Interner.InitialCapacity = 0 },
			wantErr: config.ErrZeroCapacity,
		},
		{
			name:    "zero_expected",
			mutate:  func(c *config.Config) { c.Interner.Prefilter.ExpectedStrings = 0 },
			wantErr: config.ErrZeroExpected,
		},
		{
			name:    "fp_rate_too_high",
			mutate:  func(c *config.Config) { c.Interner.Prefilter.FalsePositiveRate = 1 },
			wantErr: config.ErrInvalidFPRate,
		},
		{
			name:    "bad_format",
			mutate:  func(c *config.Config) { c.Output.Format = "xml" },
			wantErr: config.ErrInvalidFormat,
		},
		{
			name:    "bad_log_level",
			mutate:  func(c *config.Config) { c.Log.Level = "loud" },
			wantErr: config.ErrInvalidLogLevel,
		},
		{
			name:    "bad_sample_ratio",
			mutate:  func(c *config.Config) { c.Telemetry.SampleRatio = 1.5 },
			wantErr: config.ErrInvalidSampleRatio,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
