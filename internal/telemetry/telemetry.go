// Package telemetry wires OpenTelemetry metrics for treeline. Metrics are
// off by default; when enabled they export either to stdout or to an
// OTLP/HTTP collector.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/treeline-dev/treeline"

// Config controls metric export.
type Config struct {
	Enabled bool
	// OTLPEndpoint, when set, sends metrics to an OTLP/HTTP collector
	// (host:port); otherwise enabled metrics print to stdout on shutdown.
	OTLPEndpoint string
}

// Init installs the global meter provider per the config and returns a
// shutdown function that flushes pending exports. With metrics disabled it
// returns a no-op shutdown and leaves the default (no-op) provider alone.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdkmetric.Exporter
	var err error
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
	} else {
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// Metrics holds the counters the engine reports.
type Metrics struct {
	Runs         metric.Int64Counter
	Retries      metric.Int64Counter
	Levels       metric.Int64Counter
	RowsCreated  metric.Int64Counter
	RowsFailed   metric.Int64Counter
	StoreSkipped metric.Int64Counter
}

// NewMetrics creates the engine counters on the global meter provider.
// With metrics disabled the global provider is a no-op, so recording costs
// nothing.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	m := &Metrics{}
	var err error
	if m.Runs, err = meter.Int64Counter("treeline.runs",
		metric.WithDescription("Bulk runs started")); err != nil {
		return nil, err
	}
	if m.Retries, err = meter.Int64Counter("treeline.retries",
		metric.WithDescription("Retry runs started")); err != nil {
		return nil, err
	}
	if m.Levels, err = meter.Int64Counter("treeline.levels",
		metric.WithDescription("Hierarchy levels submitted")); err != nil {
		return nil, err
	}
	if m.RowsCreated, err = meter.Int64Counter("treeline.rows.created",
		metric.WithDescription("Rows successfully created")); err != nil {
		return nil, err
	}
	if m.RowsFailed, err = meter.Int64Counter("treeline.rows.failed",
		metric.WithDescription("Rows that failed")); err != nil {
		return nil, err
	}
	if m.StoreSkipped, err = meter.Int64Counter("treeline.manifest.store_skipped",
		metric.WithDescription("Manifest writes that failed and were swallowed")); err != nil {
		return nil, err
	}
	return m, nil
}
