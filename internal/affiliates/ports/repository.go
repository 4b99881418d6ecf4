package ports

import (
	"context"
	"errors"

	"github.com/bookworks/backoffice/internal/affiliates/domain"
)

// Repository exposes affiliate persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Affiliate, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Affiliate, int, error)
	Upsert(ctx context.Context, affiliate *domain.Affiliate) error
}

// ListFilter narrows affiliate queries. Search matches phone or fullname as
// a substring.
type ListFilter struct {
	Search   string
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested affiliate does not exist.
	ErrNotFound = errors.New("affiliate not found")
)
