package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Bus publishes order lifecycle events to a Kafka topic. Messages are keyed
// by the order's natural key so consumers see per-order ordering.
type Bus struct {
	writer *kafka.Writer
}

// NewBus creates a Kafka-backed event bus writing to topic on brokers.
func NewBus(brokers []string, topic string) *Bus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Bus{writer: writer}
}

type orderEvent struct {
	Event        string    `json:"event"`
	Source       string    `json:"source"`
	OrderID      string    `json:"order_id"`
	DeliveryCost int64     `json:"delivery_cost,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func (b *Bus) PublishOrderIngested(ctx context.Context, source, id string) error {
	return b.publish(ctx, orderEvent{Event: "order.ingested", Source: source, OrderID: id})
}

func (b *Bus) PublishOrderDelivered(ctx context.Context, source, id string, deliveryCost int64) error {
	return b.publish(ctx, orderEvent{Event: "order.delivered", Source: source, OrderID: id, DeliveryCost: deliveryCost})
}

func (b *Bus) PublishOrderDeleted(ctx context.Context, source, id string) error {
	return b.publish(ctx, orderEvent{Event: "order.deleted", Source: source, OrderID: id})
}

func (b *Bus) publish(ctx context.Context, event orderEvent) error {
	event.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Event, err)
	}

	message := kafka.Message{
		Key:   []byte(event.Source + "-" + event.OrderID),
		Value: payload,
	}
	if err := b.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Event, err)
	}
	return nil
}

// Close flushes and shuts down the underlying writer.
func (b *Bus) Close() error {
	return b.writer.Close()
}
