package ports

import (
	"context"
	"time"
)

// ConfigStore persists the small operational blobs the dashboard relies on:
// the per-source poll watermarks and the current per-book cost.
type ConfigStore interface {
	Watermarks(ctx context.Context) (map[string]time.Time, error)
	SaveWatermarks(ctx context.Context, marks map[string]time.Time) error
	BookCost(ctx context.Context) (int64, error)
	SaveBookCost(ctx context.Context, cost int64) error
}
