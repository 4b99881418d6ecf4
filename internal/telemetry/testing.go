package telemetry

import (
	"context"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewNoopTraceExporter returns an exporter that discards spans, so Initialize
// can run in tests without an OTLP endpoint.
func NewNoopTraceExporter() sdktrace.SpanExporter {
	return discardTraceExporter{}
}

// NewNoopMetricExporter returns an exporter that discards metrics.
func NewNoopMetricExporter() sdkmetric.Exporter {
	return discardMetricExporter{}
}

type discardTraceExporter struct{}

func (discardTraceExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	return nil
}

func (discardTraceExporter) Shutdown(context.Context) error { return nil }

type discardMetricExporter struct{}

func (discardMetricExporter) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (discardMetricExporter) Aggregation(sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.AggregationDefault{}
}

func (discardMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	return nil
}

func (discardMetricExporter) ForceFlush(context.Context) error { return nil }

func (discardMetricExporter) Shutdown(context.Context) error { return nil }
