// Package commands implements the farol subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"

	"github.com/rafaelsamenezes/farol/internal/config"
	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/observability"
	"github.com/rafaelsamenezes/farol/pkg/version"
)

// GlobalOptions carries the root command's persistent flags into subcommands.
type GlobalOptions struct {
	ConfigPath   string
	Verbose      bool
	Quiet        bool
	MetricsAddr  string
	OTLPEndpoint string
}

// runtime bundles the loaded configuration with initialized telemetry.
// Every subcommand that touches a GBF file runs inside one.
type runtime struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.Metrics
	diag      *observability.DiagnosticsServer
}

// setup loads configuration, applies flag overrides, and initializes
// logging, tracing, and metrics.
func (g *GlobalOptions) setup() (*runtime, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	if g.MetricsAddr != "" {
		cfg.Telemetry.MetricsAddr = g.MetricsAddr
	}

	if g.OTLPEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = g.OTLPEndpoint
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	switch {
	case g.Verbose:
		level = slog.LevelDebug
	case g.Quiet:
		level = slog.LevelError
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:        "farol",
		ServiceVersion:     version.Version,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		SampleRatio:        cfg.Telemetry.SampleRatio,
		LogLevel:           level,
		LogJSON:            cfg.Log.JSON,
		ShutdownTimeoutSec: 5,
	})
	if err != nil {
		return nil, err
	}

	slog.SetDefault(providers.Logger)

	color.NoColor = !cfg.Output.Color //nolint:reassign // intentional override of library global

	rt := &runtime{cfg: cfg, providers: providers}

	meter := providers.Meter

	if cfg.Telemetry.MetricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(cfg.Telemetry.MetricsAddr)
		if diagErr != nil {
			return nil, errors.Join(diagErr, providers.Shutdown(context.Background()))
		}

		slog.Debug("diagnostics server listening", "addr", diag.Addr())

		rt.diag = diag
		meter = diag.Meter.Meter("farol")
	}

	metrics, err := observability.NewMetrics(meter)
	if err != nil {
		return nil, errors.Join(err, rt.close(context.Background()))
	}

	rt.metrics = metrics

	return rt, nil
}

// newInterner builds a string interner from the loaded configuration.
func (rt *runtime) newInterner() (*interner.Interner, error) {
	opts := []interner.Option{
		interner.WithInitialCapacity(rt.cfg.Interner.InitialCapacity),
	}

	if rt.cfg.Interner.Prefilter.Enabled {
		opts = append(opts, interner.WithPrefilter(
			rt.cfg.Interner.Prefilter.ExpectedStrings,
			rt.cfg.Interner.Prefilter.FalsePositiveRate,
		))
	}

	it, err := interner.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create interner: %w", err)
	}

	return it, nil
}

// close flushes telemetry and stops the diagnostics server.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error

	if rt.diag != nil {
		errs = append(errs, rt.diag.Close())
	}

	errs = append(errs, rt.providers.Shutdown(ctx))

	return errors.Join(errs...)
}
