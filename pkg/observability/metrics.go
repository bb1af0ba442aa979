package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the cqrs framework.
type Metrics struct {
	CommandDuration  metric.Float64Histogram
	CommandTotal     metric.Int64Counter
	CommandErrors    metric.Int64Counter
	Conflicts        metric.Int64Counter
	EventsCommitted  metric.Int64Counter
	DispatchWarnings metric.Int64Counter
}

// NewMetrics creates all metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.CommandDuration, err = meter.Float64Histogram(
		"cqrs.command.duration",
		metric.WithDescription("Command execution duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating command.duration: %w", err)
	}

	if m.CommandTotal, err = meter.Int64Counter(
		"cqrs.command.total",
		metric.WithDescription("Total commands executed"),
	); err != nil {
		return nil, fmt.Errorf("creating command.total: %w", err)
	}

	if m.CommandErrors, err = meter.Int64Counter(
		"cqrs.command.errors",
		metric.WithDescription("Total commands that failed"),
	); err != nil {
		return nil, fmt.Errorf("creating command.errors: %w", err)
	}

	if m.Conflicts, err = meter.Int64Counter(
		"cqrs.command.conflicts",
		metric.WithDescription("Total optimistic concurrency conflicts"),
	); err != nil {
		return nil, fmt.Errorf("creating command.conflicts: %w", err)
	}

	if m.EventsCommitted, err = meter.Int64Counter(
		"cqrs.events.committed",
		metric.WithDescription("Total events committed to the event store"),
	); err != nil {
		return nil, fmt.Errorf("creating events.committed: %w", err)
	}

	if m.DispatchWarnings, err = meter.Int64Counter(
		"cqrs.dispatch.warnings",
		metric.WithDescription("Total query dispatch warnings"),
	); err != nil {
		return nil, fmt.Errorf("creating dispatch.warnings: %w", err)
	}

	return m, nil
}
