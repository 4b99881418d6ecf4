package ports

import "context"

// EventBus publishes order lifecycle events for downstream consumers.
type EventBus interface {
	PublishOrderIngested(ctx context.Context, source, id string) error
	PublishOrderDelivered(ctx context.Context, source, id string, deliveryCost int64) error
	PublishOrderDeleted(ctx context.Context, source, id string) error
}

// Notifier signals listeners that the aggregate order list changed.
type Notifier interface {
	OrdersChanged()
}

// NoopNotifier satisfies Notifier where no listeners exist, e.g. in tests.
type NoopNotifier struct{}

func (NoopNotifier) OrdersChanged() {}
