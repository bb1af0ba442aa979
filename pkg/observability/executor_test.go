package observability_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nigeleke/cqrs/pkg/cqrs"
	"github.com/nigeleke/cqrs/pkg/observability"
)

type tickEvent struct{}

func (*tickEvent) EventType() string    { return "Ticked" }
func (*tickEvent) EventVersion() string { return "1.0" }

// scriptedExecutor returns canned results so instrument behavior can be
// asserted without a real framework.
type scriptedExecutor struct {
	result *cqrs.CommandResult[*tickEvent]
	err    error
}

func (s *scriptedExecutor) Execute(ctx context.Context, aggregateID string, command string) (*cqrs.CommandResult[*tickEvent], error) {
	return s.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

func (s *scriptedExecutor) ExecuteWithMetadata(ctx context.Context, aggregateID string, command string, metadata map[string]string) (*cqrs.CommandResult[*tickEvent], error) {
	return s.result, s.err
}

func newTelemetry(t *testing.T) (*observability.Telemetry, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	spans := tracetest.NewInMemoryExporter()

	tel, err := observability.Init(context.Background(), observability.Config{
		ServiceName:     "cqrs-test",
		ServiceVersion:  "0.0.0",
		Environment:     "test",
		TraceExporter:   spans,
		TraceSampleRate: 1.0,
		MetricReader:    reader,
	})
	require.NoError(t, err)
	t.Cleanup(func() { tel.Shutdown(context.Background()) })
	return tel, reader, spans
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) (int64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func TestInstrumentedExecutorRecordsSuccess(t *testing.T) {
	tel, reader, _ := newTelemetry(t)

	next := &scriptedExecutor{result: &cqrs.CommandResult[*tickEvent]{
		Events: []cqrs.EventEnvelope[*tickEvent]{
			{AggregateID: "t-1", Sequence: 1, Payload: &tickEvent{}},
			{AggregateID: "t-1", Sequence: 2, Payload: &tickEvent{}},
		},
		Warnings: []error{errors.New("view lagging")},
	}}
	exec := observability.WrapExecutor[string, *tickEvent](next, tel, "Ticker")

	result, err := exec.Execute(context.Background(), "t-1", "tick")
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	total, ok := counterValue(t, reader, "cqrs.command.total")
	require.True(t, ok)
	require.Equal(t, int64(1), total)

	committed, ok := counterValue(t, reader, "cqrs.events.committed")
	require.True(t, ok)
	require.Equal(t, int64(2), committed)

	warnings, ok := counterValue(t, reader, "cqrs.dispatch.warnings")
	require.True(t, ok)
	require.Equal(t, int64(1), warnings)

	_, ok = counterValue(t, reader, "cqrs.command.errors")
	require.False(t, ok)
}

func TestInstrumentedExecutorRecordsConflict(t *testing.T) {
	tel, reader, _ := newTelemetry(t)

	next := &scriptedExecutor{err: fmt.Errorf("wrapped: %w", cqrs.ErrConflict)}
	exec := observability.WrapExecutor[string, *tickEvent](next, tel, "Ticker")

	_, err := exec.Execute(context.Background(), "t-1", "tick")
	require.ErrorIs(t, err, cqrs.ErrConflict)

	for _, name := range []string{"cqrs.command.total", "cqrs.command.errors", "cqrs.command.conflicts"} {
		value, ok := counterValue(t, reader, name)
		require.True(t, ok, name)
		require.Equal(t, int64(1), value, name)
	}
}

func TestInstrumentedExecutorEmitsSpans(t *testing.T) {
	tel, _, spans := newTelemetry(t)

	next := &scriptedExecutor{result: &cqrs.CommandResult[*tickEvent]{}}
	exec := observability.WrapExecutor[string, *tickEvent](next, tel, "Ticker")

	_, err := exec.Execute(context.Background(), "t-1", "tick")
	require.NoError(t, err)
	tp, ok := tel.TracerProvider.(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))

	ended := spans.GetSpans()
	require.Len(t, ended, 1)
	require.Equal(t, "cqrs.execute", ended[0].Name)
}

func TestInitWithoutExportersIsUsable(t *testing.T) {
	tel, err := observability.Init(context.Background(), observability.Config{
		ServiceName: "cqrs-test",
	})
	require.NoError(t, err)
	require.NotNil(t, tel.Metrics)
	require.NotNil(t, tel.TracerProvider)

	// Instruments are callable with nothing configured.
	tel.Metrics.CommandTotal.Add(context.Background(), 1)
	require.NoError(t, tel.Shutdown(context.Background()))
}
