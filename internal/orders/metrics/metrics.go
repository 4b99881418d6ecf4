package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments the ingestion pipeline. A nil *Metrics is a no-op so
// tests can run the scheduler without a meter.
type Metrics struct {
	pollsTotal    metric.Int64Counter
	recordsMerged metric.Int64Counter
	pollDuration  metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.pollsTotal, err = meter.Int64Counter(
		"source_polls_total",
		metric.WithDescription("Total number of source poll attempts"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create source_polls_total counter: %w", err)
	}

	m.recordsMerged, err = meter.Int64Counter(
		"orders_merged_total",
		metric.WithDescription("Total number of feed records merged into the order store"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_merged_total counter: %w", err)
	}

	m.pollDuration, err = meter.Float64Histogram(
		"source_poll_duration_seconds",
		metric.WithDescription("Duration of single-source poll fetches"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create source_poll_duration histogram: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordPoll(ctx context.Context, source string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.pollsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
	m.pollDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("source", source),
	))
}

func (m *Metrics) RecordMerged(ctx context.Context, source string, count int) {
	if m == nil {
		return
	}
	m.recordsMerged.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("source", source),
	))
}
