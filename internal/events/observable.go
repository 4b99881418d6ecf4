package events

import (
	"context"
	"time"

	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/bookworks/backoffice/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableBus decorates an event bus with tracing and publish metrics.
type ObservableBus struct {
	bus     ports.EventBus
	metrics *Metrics
}

func NewObservableBus(bus ports.EventBus, metrics *Metrics) *ObservableBus {
	return &ObservableBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableBus) PublishOrderIngested(ctx context.Context, source, id string) error {
	return e.publish(ctx, "order.ingested", source, id, func(ctx context.Context) error {
		return e.bus.PublishOrderIngested(ctx, source, id)
	})
}

func (e *ObservableBus) PublishOrderDelivered(ctx context.Context, source, id string, deliveryCost int64) error {
	return e.publish(ctx, "order.delivered", source, id, func(ctx context.Context) error {
		return e.bus.PublishOrderDelivered(ctx, source, id, deliveryCost)
	})
}

func (e *ObservableBus) PublishOrderDeleted(ctx context.Context, source, id string) error {
	return e.publish(ctx, "order.deleted", source, id, func(ctx context.Context) error {
		return e.bus.PublishOrderDeleted(ctx, source, id)
	})
}

func (e *ObservableBus) publish(ctx context.Context, event, source, id string, send func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("event.type", event),
		attribute.String("order.source", source),
		attribute.String("order.id", id),
	)

	start := time.Now()
	err := send(ctx)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, event, duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
