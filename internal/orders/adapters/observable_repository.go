package adapters

import (
	"context"
	"time"

	"github.com/bookworks/backoffice/internal/database"
	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/bookworks/backoffice/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableRepository decorates an order repository with tracing and query
// duration metrics.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) Upsert(ctx context.Context, order *domain.Order) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.Upsert")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("order.key", order.UniqueID()))

	start := time.Now()
	err := r.repo.Upsert(ctx, order)
	r.metrics.RecordQuery(ctx, "upsert_order", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.List")
	defer span.End()

	start := time.Now()
	orders, total, err := r.repo.List(ctx, filter)
	r.metrics.RecordQuery(ctx, "list_orders", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, 0, err
	}

	telemetry.AddSpanAttributes(span, attribute.Int("orders.count", len(orders)))
	telemetry.SetSpanSuccess(span)
	return orders, total, nil
}

func (r *ObservableRepository) DeleteByNaturalKey(ctx context.Context, source, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository.DeleteByNaturalKey")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.source", source),
		attribute.String("order.id", id),
	)

	start := time.Now()
	err := r.repo.DeleteByNaturalKey(ctx, source, id)
	r.metrics.RecordQuery(ctx, "delete_order", time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
