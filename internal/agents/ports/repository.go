package ports

import (
	"context"
	"errors"

	"github.com/bookworks/backoffice/internal/agents/domain"
)

// Repository exposes agent persistence. Upsert covers both feed-synced and
// locally created agents.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Agent, int, error)
	Upsert(ctx context.Context, agent *domain.Agent) error
}

// ListFilter narrows agent queries. Search matches phone or fullname as a
// substring.
type ListFilter struct {
	Search   string
	State    string
	Page     int
	PageSize int
}

var (
	// ErrNotFound is returned when the requested agent does not exist.
	ErrNotFound = errors.New("agent not found")
)
