package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestStartSpan(t *testing.T) {
	t.Run("records the span under its operation name", func(t *testing.T) {
		exporter := newSpanRecorder(t)

		_, span := StartSpan(context.Background(), "scheduler.poll_cycle")
		span.End()

		spans := exporter.GetSpans()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if spans[0].Name != "scheduler.poll_cycle" {
			t.Errorf("span name = %q, want scheduler.poll_cycle", spans[0].Name)
		}
	})

	t.Run("nests a source fetch under the poll cycle", func(t *testing.T) {
		exporter := newSpanRecorder(t)

		ctx, cycle := StartSpan(context.Background(), "scheduler.poll_cycle")
		_, fetch := StartSpan(ctx, "source.fetch")
		fetch.End()
		cycle.End()

		spans := exporter.GetSpans()
		if len(spans) != 2 {
			t.Fatalf("expected 2 spans, got %d", len(spans))
		}
		// The child ends first, so it is exported first.
		if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
			t.Error("expected the fetch span to be a child of the poll cycle")
		}
		if spans[0].SpanContext.TraceID() != spans[1].SpanContext.TraceID() {
			t.Error("expected both spans to share one trace")
		}
	})
}

func TestSpanAttributesAndEvents(t *testing.T) {
	exporter := newSpanRecorder(t)

	_, span := StartSpan(context.Background(), "source.fetch")
	AddSpanAttributes(span, attribute.String("source", "shop"), attribute.Int("records", 3))
	AddSpanEvent(span, "watermark.advanced", attribute.String("source", "shop"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	got := spans[0]
	foundSource := false
	for _, attr := range got.Attributes {
		if attr.Key == "source" && attr.Value.AsString() == "shop" {
			foundSource = true
		}
	}
	if !foundSource {
		t.Error("expected source attribute on the span")
	}

	if len(got.Events) != 1 || got.Events[0].Name != "watermark.advanced" {
		t.Errorf("events = %+v, want one watermark.advanced event", got.Events)
	}
}

func TestSpanStatus(t *testing.T) {
	t.Run("RecordSpanError marks the span failed", func(t *testing.T) {
		exporter := newSpanRecorder(t)

		_, span := StartSpan(context.Background(), "source.fetch")
		RecordSpanError(span, errors.New("feed returned 502"))
		span.End()

		got := exporter.GetSpans()[0]
		if got.Status.Code != codes.Error {
			t.Errorf("status = %v, want Error", got.Status.Code)
		}
		if got.Status.Description != "feed returned 502" {
			t.Errorf("description = %q, want the feed error", got.Status.Description)
		}
		if len(got.Events) != 1 || got.Events[0].Name != "exception" {
			t.Error("expected a recorded exception event")
		}
	})

	t.Run("SetSpanSuccess marks the span ok", func(t *testing.T) {
		exporter := newSpanRecorder(t)

		_, span := StartSpan(context.Background(), "scheduler.poll_cycle")
		SetSpanSuccess(span)
		span.End()

		got := exporter.GetSpans()[0]
		if got.Status.Code != codes.Ok {
			t.Errorf("status = %v, want Ok", got.Status.Code)
		}
	})

	t.Run("nil span and nil error are ignored", func(t *testing.T) {
		RecordSpanError(nil, errors.New("dropped"))
		SetSpanSuccess(nil)
		AddSpanAttributes(nil, attribute.String("source", "shop"))
		AddSpanEvent(nil, "ignored")

		exporter := newSpanRecorder(t)
		_, span := StartSpan(context.Background(), "scheduler.poll_cycle")
		RecordSpanError(span, nil)
		span.End()

		if got := exporter.GetSpans()[0]; got.Status.Code == codes.Error {
			t.Error("nil error must not mark the span failed")
		}
	})
}

func TestTraceAndSpanIDs(t *testing.T) {
	t.Run("empty without an active span", func(t *testing.T) {
		ctx := context.Background()
		if id := TraceID(ctx); id != "" {
			t.Errorf("TraceID = %q, want empty", id)
		}
		if id := SpanID(ctx); id != "" {
			t.Errorf("SpanID = %q, want empty", id)
		}
	})

	t.Run("populated inside a span", func(t *testing.T) {
		newSpanRecorder(t)

		ctx, span := StartSpan(context.Background(), "scheduler.poll_cycle")
		defer span.End()

		if id := TraceID(ctx); id == "" {
			t.Error("expected a trace id inside the span")
		}
		if id := SpanID(ctx); id == "" {
			t.Error("expected a span id inside the span")
		}
	})
}
