package ports

import (
	"context"
	"errors"
	"time"

	"github.com/bookworks/backoffice/internal/orders/domain"
)

// OrderRepository exposes the persistence operations the ingestion pipeline
// and the operations service need. Upsert is keyed on the natural
// (source, id) pair and fills in the storage id on first insert.
type OrderRepository interface {
	Upsert(ctx context.Context, order *domain.Order) error
	List(ctx context.Context, filter ListFilter) ([]domain.Order, int, error)
	DeleteByNaturalKey(ctx context.Context, source, id string) error
}

// ListFilter narrows query-mode reads. Nil pointer fields mean "don't care";
// Confirmed/Assigned distinguish null checks from equality.
type ListFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	Confirmed      *bool
	Assigned       *bool
	DeliveryStatus *domain.DeliveryStatus
	Items          []domain.OrderItem
	Sources        []string
	AgentID        string
	Phone          string
	Page           int
	PageSize       int
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
)
