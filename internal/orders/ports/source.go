package ports

import (
	"context"
	"time"

	"github.com/bookworks/backoffice/internal/orders/domain"
)

// SearchParam is the window handed to a source adapter for one poll cycle.
// StartDate is the source's current watermark; EndDate is left unset so the
// window is unbounded upward.
type SearchParam struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Source fetches one external storefront's orders for a search window,
// paginating internally until the feed is exhausted. Implementations return
// the full normalized result set for the call.
type Source interface {
	Fetch(ctx context.Context, param SearchParam) ([]domain.CanonicalOrder, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, param SearchParam) ([]domain.CanonicalOrder, error)

func (f SourceFunc) Fetch(ctx context.Context, param SearchParam) ([]domain.CanonicalOrder, error) {
	return f(ctx, param)
}
