package task

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/phrazzld/shelfd/internal/task"

type poolMetrics struct {
	submittedCounter metric.Int64Counter
	finishedCounter  metric.Int64Counter
	runningCounter   metric.Int64UpDownCounter
}

// newPoolMetrics creates the pool instruments on meter, or on the global
// meter provider when meter is nil. Instrument errors fall back to no-op
// instruments so metrics never stop the pool from working.
func newPoolMetrics(meter metric.Meter, logger *slog.Logger) *poolMetrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	m, err := buildPoolMetrics(meter)
	if err != nil {
		logger.Warn("failed to create task metrics, using no-op instruments", "error", err)
		m, _ = buildPoolMetrics(noop.NewMeterProvider().Meter(meterName))
	}
	return m
}

func buildPoolMetrics(meter metric.Meter) (*poolMetrics, error) {
	submitted, err := meter.Int64Counter("shelfd.tasks.submitted",
		metric.WithDescription("Number of tasks submitted to the worker pool"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	finished, err := meter.Int64Counter("shelfd.tasks.finished",
		metric.WithDescription("Number of tasks that reached a terminal state"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	running, err := meter.Int64UpDownCounter("shelfd.tasks.running",
		metric.WithDescription("Number of tasks currently running"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	return &poolMetrics{
		submittedCounter: submitted,
		finishedCounter:  finished,
		runningCounter:   running,
	}, nil
}

func (m *poolMetrics) submitted(kind Kind) {
	m.submittedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *poolMetrics) finished(kind Kind, status Status) {
	m.finishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("status", status.String()),
		))
}

func (m *poolMetrics) runningDelta(kind Kind, delta int64) {
	m.runningCounter.Add(context.Background(), delta,
		metric.WithAttributes(attribute.String("kind", string(kind))))
}
