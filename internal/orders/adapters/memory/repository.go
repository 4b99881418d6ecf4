package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/google/uuid"
)

// Repository provides an in-memory order store useful for local development
// and tests. Rows are keyed by the natural (source, id) pair, matching the
// unique constraint the postgres adapter relies on.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func naturalKey(source, id string) string {
	return strings.ToLower(source) + "-" + strings.ToLower(id)
}

// Upsert stores the order and assigns a storage id on first insert.
func (r *Repository) Upsert(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := naturalKey(order.Source, order.ID)
	if existing, ok := r.orders[key]; ok {
		order.StorageID = existing.StorageID
	} else if order.StorageID == "" {
		order.StorageID = uuid.NewString()
	}
	r.orders[key] = *order
	return nil
}

func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Order
	for _, order := range r.orders {
		if !matches(order, filter) {
			continue
		}
		matched = append(matched, order)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.Order{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	slice := make([]domain.Order, end-start)
	copy(slice, matched[start:end])
	return slice, total, nil
}

func (r *Repository) DeleteByNaturalKey(_ context.Context, source, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := naturalKey(source, id)
	if _, ok := r.orders[key]; !ok {
		return ports.ErrNotFound
	}
	delete(r.orders, key)
	return nil
}

// Len reports the number of stored rows, for tests.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func matches(order domain.Order, filter ports.ListFilter) bool {
	if filter.StartDate != nil && order.CreatedAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && order.CreatedAt.After(*filter.EndDate) {
		return false
	}
	if filter.Confirmed != nil && order.IsConfirmed() != *filter.Confirmed {
		return false
	}
	if filter.Assigned != nil && order.IsAssigned() != *filter.Assigned {
		return false
	}
	if filter.DeliveryStatus != nil && order.DeliveryStatus != *filter.DeliveryStatus {
		return false
	}
	if len(filter.Items) > 0 && !containsItem(filter.Items, order.Item) {
		return false
	}
	if len(filter.Sources) > 0 && !containsString(filter.Sources, order.Source) {
		return false
	}
	if filter.AgentID != "" && order.AgentID != filter.AgentID {
		return false
	}
	if filter.Phone != "" && !strings.Contains(strings.ToLower(order.Phone), strings.ToLower(filter.Phone)) {
		return false
	}
	return true
}

func containsItem(items []domain.OrderItem, item domain.OrderItem) bool {
	for _, candidate := range items {
		if candidate == item {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
