// Package telemetry wires the OpenTelemetry meter provider the tool and
// HTTP instruments hang off. A stdio sidecar has no collector to push
// to, so the provider runs a manual reader and the final snapshot is
// written to the session log at shutdown instead of exported.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Config holds telemetry configuration.
type Config struct {
	// Enabled installs the meter provider globally. Disabled leaves the
	// otel no-op provider in place and every instrument becomes free.
	Enabled bool `koanf:"enabled"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
}

// NewDefaultConfig returns the telemetry defaults. Enabled is on: the
// manual reader costs nothing until someone collects it.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		ServiceName:    "gandalf",
		ServiceVersion: "dev",
	}
}

// Telemetry owns the meter provider and its manual reader.
type Telemetry struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
	logger   *zap.Logger
}

// New builds the meter provider and installs it as the otel global.
// With cfg.Enabled false the returned instance is inert and Shutdown
// is a no-op.
func New(cfg *Config, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	t := &Telemetry{logger: logger.Named("telemetry")}
	if !cfg.Enabled {
		return t, nil
	}

	// Standalone resource; resource.Default() carries a different
	// semconv schema URL and merging the two conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	t.reader = sdkmetric.NewManualReader()
	t.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(t.reader),
	)
	otel.SetMeterProvider(t.provider)
	return t, nil
}

// Snapshot collects the current metric state.
func (t *Telemetry) Snapshot(ctx context.Context) (*metricdata.ResourceMetrics, error) {
	if t.reader == nil {
		return nil, fmt.Errorf("telemetry disabled")
	}
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}
	return &rm, nil
}

// Shutdown dumps the final metric snapshot to the session log and tears
// the provider down. Collection failures are logged, never fatal; a
// dying process should not be blocked by its own bookkeeping.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}

	if rm, err := t.Snapshot(ctx); err == nil {
		t.logSnapshot(rm)
	} else {
		t.logger.Warn("final metrics collection failed", zap.Error(err))
	}

	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down meter provider: %w", err)
	}
	return nil
}

func (t *Telemetry) logSnapshot(rm *metricdata.ResourceMetrics) {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			t.logger.Info("metric",
				zap.String("scope", scope.Scope.Name),
				zap.String("name", m.Name),
				zap.String("summary", summarize(m.Data)))
		}
	}
}

// summarize renders one aggregation compactly for the shutdown dump.
func summarize(data metricdata.Aggregation) string {
	switch agg := data.(type) {
	case metricdata.Sum[int64]:
		var total int64
		for _, dp := range agg.DataPoints {
			total += dp.Value
		}
		return fmt.Sprintf("sum=%d points=%d", total, len(agg.DataPoints))
	case metricdata.Sum[float64]:
		var total float64
		for _, dp := range agg.DataPoints {
			total += dp.Value
		}
		return fmt.Sprintf("sum=%g points=%d", total, len(agg.DataPoints))
	case metricdata.Histogram[float64]:
		var count uint64
		var sum float64
		for _, dp := range agg.DataPoints {
			count += dp.Count
			sum += dp.Sum
		}
		return fmt.Sprintf("count=%d sum=%gs", count, sum)
	case metricdata.Histogram[int64]:
		var count uint64
		var sum int64
		for _, dp := range agg.DataPoints {
			count += dp.Count
			sum += dp.Sum
		}
		return fmt.Sprintf("count=%d sum=%d", count, sum)
	case metricdata.Gauge[int64]:
		return fmt.Sprintf("points=%d", len(agg.DataPoints))
	case metricdata.Gauge[float64]:
		return fmt.Sprintf("points=%d", len(agg.DataPoints))
	default:
		return fmt.Sprintf("%T", data)
	}
}
