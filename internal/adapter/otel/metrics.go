package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "backline"

// Metrics holds all Backline metric instruments. It implements the
// service.Metrics interface.
type Metrics struct {
	Decisions        metric.Int64Counter
	Resolutions      metric.Int64Counter
	DecisionDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Decisions, err = meter.Int64Counter("backline.decisions",
		metric.WithDescription("Decisions made, by kind and outcome"))
	if err != nil {
		return nil, err
	}

	m.Resolutions, err = meter.Int64Counter("backline.resolutions",
		metric.WithDescription("Human review resolutions, by verdict"))
	if err != nil {
		return nil, err
	}

	m.DecisionDuration, err = meter.Float64Histogram("backline.decision.duration_seconds",
		metric.WithDescription("Time from event receipt to audit write"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordDecision counts a routed decision and its pipeline latency.
func (m *Metrics) RecordDecision(ctx context.Context, kind, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome))
	m.Decisions.Add(ctx, 1, attrs)
	m.DecisionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordResolution counts a human resolution by verdict.
func (m *Metrics) RecordResolution(ctx context.Context, status string) {
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", status)))
}
