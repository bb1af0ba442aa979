// Package observability provides OpenTelemetry-based tracing and metrics
// for the cqrs framework, with backend-agnostic configuration.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures the observability stack.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // dev, staging, prod

	// TraceExporter is a pluggable span exporter (OTLP, stdout, ...). Nil
	// disables tracing.
	TraceExporter sdktrace.SpanExporter

	// TraceSampleRate samples traces between 0.0 and 1.0.
	TraceSampleRate float64

	// MetricReader is a pluggable metric reader (Prometheus, OTLP, ...).
	// Nil disables metrics.
	MetricReader sdkmetric.Reader

	Logger *slog.Logger
}

// Telemetry is the initialized observability stack. With no exporters
// configured every instrument is a no-op, so call sites never branch.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Metrics        *Metrics
	Logger         *slog.Logger

	shutdown func(context.Context) error
}

// Init initializes OpenTelemetry with graceful degradation: a failing
// exporter logs a warning and leaves that signal disabled.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tel := &Telemetry{Logger: cfg.Logger}
	var shutdownFuncs []func(context.Context) error

	if cfg.TraceExporter != nil {
		sampler := sdktrace.TraceIDRatioBased(cfg.TraceSampleRate)
		if cfg.TraceSampleRate >= 1.0 {
			sampler = sdktrace.AlwaysSample()
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
			sdktrace.WithBatcher(cfg.TraceExporter),
		)
		tel.TracerProvider = tp
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		otel.SetTracerProvider(tp)
		cfg.Logger.Info("tracing initialized", "service", cfg.ServiceName)
	} else {
		tel.TracerProvider = noop.NewTracerProvider()
		cfg.Logger.Info("tracing disabled (no exporter configured)")
	}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(cfg.MetricReader),
		)
		metrics, err := NewMetrics(mp.Meter("cqrs"))
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		tel.MeterProvider = mp
		tel.Metrics = metrics
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		otel.SetMeterProvider(mp)
		cfg.Logger.Info("metrics initialized", "service", cfg.ServiceName)
	} else {
		mp := sdkmetric.NewMeterProvider()
		metrics, err := NewMetrics(mp.Meter("cqrs"))
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		tel.MeterProvider = mp
		tel.Metrics = metrics
		cfg.Logger.Info("metrics disabled (no reader configured)")
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel.shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("shutdown errors: %v", errs)
		}
		return nil
	}

	return tel, nil
}

// Shutdown flushes and stops all configured providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}
