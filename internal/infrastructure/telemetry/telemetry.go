// Package telemetry wires OpenTelemetry traces, metrics and logs plus
// Pyroscope profiling for the fulfillment service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const (
	defaultMetricsInterval = 60 * time.Second
	providerShutdownWait   = 10 * time.Second
)

// Config is shared by the trace, metric and log providers. All three export
// over OTLP gRPC to the same collector.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	SamplingRatio     float64
	MetricsInterval   time.Duration
}

func (c Config) resource() (*resource.Resource, error) {
	version := c.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Providers bundles the three OTLP providers so startup and shutdown happen in one place
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
}

// Setup creates the tracer, meter and logger providers from one Config.
// Providers created before a failure are shut down again.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	tp, err := NewTracerProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	lp, err := NewLoggerProvider(ctx, cfg, logger)
	if err != nil {
		_ = mp.Shutdown(ctx)
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &Providers{Tracer: tp, Meter: mp, Logs: lp}, nil
}

// Shutdown stops logs last so messages logged while closing metrics and traces are still exported
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Meter.Shutdown(ctx),
		p.Tracer.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// shutdownProvider bounds an SDK provider shutdown by providerShutdownWait
func shutdownProvider(ctx context.Context, p shutdowner, kind string, logger *zap.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, providerShutdownWait)
	defer cancel()

	if err := p.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down "+kind+" provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown %s provider: %w", kind, err)
	}
	logger.Info("OpenTelemetry " + kind + " provider shut down")
	return nil
}
