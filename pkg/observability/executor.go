package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// InstrumentedExecutor decorates a cqrs.Executor with a span and metrics
// per Execute call. It implements cqrs.Executor itself, so it can stand in
// anywhere a framework is expected.
type InstrumentedExecutor[C any, E cqrs.DomainEvent] struct {
	next          cqrs.Executor[C, E]
	tracer        trace.Tracer
	metrics       *Metrics
	aggregateType string
}

// WrapExecutor instruments exec with the given telemetry.
func WrapExecutor[C any, E cqrs.DomainEvent](exec cqrs.Executor[C, E], tel *Telemetry, aggregateType string) *InstrumentedExecutor[C, E] {
	return &InstrumentedExecutor[C, E]{
		next:          exec,
		tracer:        tel.TracerProvider.Tracer("cqrs"),
		metrics:       tel.Metrics,
		aggregateType: aggregateType,
	}
}

func (x *InstrumentedExecutor[C, E]) Execute(ctx context.Context, aggregateID string, command C) (*cqrs.CommandResult[E], error) {
	return x.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

func (x *InstrumentedExecutor[C, E]) ExecuteWithMetadata(ctx context.Context, aggregateID string, command C, metadata map[string]string) (*cqrs.CommandResult[E], error) {
	attrs := metric.WithAttributes(
		attribute.String("aggregate.type", x.aggregateType),
	)

	ctx, span := x.tracer.Start(ctx, "cqrs.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("aggregate.type", x.aggregateType),
			attribute.String("aggregate.id", aggregateID),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := x.next.ExecuteWithMetadata(ctx, aggregateID, command, metadata)
	elapsed := time.Since(start).Seconds()

	x.metrics.CommandTotal.Add(ctx, 1, attrs)
	x.metrics.CommandDuration.Record(ctx, elapsed, attrs)

	if err != nil {
		x.metrics.CommandErrors.Add(ctx, 1, attrs)
		if errors.Is(err, cqrs.ErrConflict) {
			x.metrics.Conflicts.Add(ctx, 1, attrs)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	x.metrics.EventsCommitted.Add(ctx, int64(len(result.Events)), attrs)
	if len(result.Warnings) > 0 {
		x.metrics.DispatchWarnings.Add(ctx, int64(len(result.Warnings)), attrs)
	}
	span.SetAttributes(
		attribute.Int("events.committed", len(result.Events)),
		attribute.Int("dispatch.warnings", len(result.Warnings)),
	)

	return result, nil
}
