package events

import (
	"context"
	"log/slog"
)

// NoopBus logs events without sending them to Kafka. Useful for local dev
// before wiring a broker.
type NoopBus struct{}

// NewNoopBus returns a new no-op event publisher.
func NewNoopBus() *NoopBus {
	return &NoopBus{}
}

func (n *NoopBus) PublishOrderIngested(_ context.Context, source, id string) error {
	slog.Debug("event::order_ingested", "source", source, "order_id", id)
	return nil
}

func (n *NoopBus) PublishOrderDelivered(_ context.Context, source, id string, deliveryCost int64) error {
	slog.Debug("event::order_delivered", "source", source, "order_id", id, "delivery_cost", deliveryCost)
	return nil
}

func (n *NoopBus) PublishOrderDeleted(_ context.Context, source, id string) error {
	slog.Debug("event::order_deleted", "source", source, "order_id", id)
	return nil
}
