package jobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the worker's counters. A nil *Metrics disables recording.
type Metrics struct {
	processed metric.Int64Counter
	retried   metric.Int64Counter
	failed    metric.Int64Counter
}

// NewMetrics registers the worker counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	processed, err := meter.Int64Counter("plansync.jobs.processed",
		metric.WithDescription("Jobs completed with a stored result"))
	if err != nil {
		return nil, err
	}
	retried, err := meter.Int64Counter("plansync.jobs.retried",
		metric.WithDescription("Job attempts that failed and were rescheduled"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("plansync.jobs.failed",
		metric.WithDescription("Jobs moved to the dead letter state"))
	if err != nil {
		return nil, err
	}
	return &Metrics{processed: processed, retried: retried, failed: failed}, nil
}

func (m *Metrics) addProcessed(ctx context.Context, messageType string) {
	if m == nil {
		return
	}
	m.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("message_type", messageType)))
}

func (m *Metrics) addRetried(ctx context.Context, messageType string) {
	if m == nil {
		return
	}
	m.retried.Add(ctx, 1, metric.WithAttributes(attribute.String("message_type", messageType)))
}

func (m *Metrics) addFailed(ctx context.Context, messageType string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("message_type", messageType)))
}
