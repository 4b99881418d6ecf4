// Package ingest drives the polling pipeline: it pulls heterogeneous order
// feeds through registered source adapters, merges them into an in-memory
// keyed store, and maintains per-source incremental-fetch watermarks so a
// re-poll is cheap and idempotent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/metrics"
	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/bookworks/backoffice/internal/pubsub"
	"github.com/bookworks/backoffice/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultInterval = 60 * time.Second
	defaultPageSize = 50
)

// Sources registered before any successful poll start from this date.
var defaultSince = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// sourceID normalizes a registered source name into its watermark key.
func sourceID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Scheduler owns the source registry, the per-source watermarks, and the
// polling loop. It is the single owner of the order store and the watermark
// map; entities never reach into either.
type Scheduler struct {
	repo    ports.OrderRepository
	configs ports.ConfigStore
	events  ports.EventBus
	logger  *slog.Logger
	metrics *metrics.Metrics

	interval time.Duration
	pageSize int
	now      func() time.Time

	mu          sync.Mutex
	sources     map[string]ports.Source
	watermarks  map[string]time.Time
	bucket      *Bucket[*domain.Order]
	totalOrders int
	loading     bool
	cancelPull  context.CancelFunc
	cancelQuery context.CancelFunc

	queryGen atomic.Int64

	broadcast *pubsub.Broadcast[[]*domain.Order]
	alerts    *pubsub.Broadcast[int]
}

// Option overrides scheduler defaults.
type Option func(*Scheduler)

// WithInterval sets the background poll interval.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.interval = interval }
}

// WithPageSize sets the per-request page size handed to source adapters.
func WithPageSize(size int) Option {
	return func(s *Scheduler) { s.pageSize = size }
}

// WithMetrics attaches ingestion metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler wires the scheduler's collaborators.
func NewScheduler(
	repo ports.OrderRepository,
	configs ports.ConfigStore,
	events ports.EventBus,
	logger *slog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		repo:       repo,
		configs:    configs,
		events:     events,
		logger:     logger,
		interval:   defaultInterval,
		pageSize:   defaultPageSize,
		now:        time.Now,
		sources:    make(map[string]ports.Source),
		watermarks: make(map[string]time.Time),
		bucket:     NewBucket(func(o *domain.Order) string { return o.UniqueID() }),
		broadcast:  pubsub.NewBroadcast[[]*domain.Order](),
		alerts:     pubsub.NewBroadcast[int](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the persisted watermark map. Sources registered afterwards keep
// their loaded watermark unless an explicit override is supplied.
func (s *Scheduler) Init(ctx context.Context) error {
	marks, err := s.configs.Watermarks(ctx)
	if err != nil {
		return fmt.Errorf("load watermarks: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, ts := range marks {
		s.watermarks[sourceID(name)] = ts
	}
	return nil
}

// RegisterSource records a source adapter under a name. Re-registering the
// same name replaces the adapter. A non-nil since overrides the watermark;
// otherwise a previously loaded watermark is kept, falling back to the
// default epoch for sources never polled before.
func (s *Scheduler) RegisterSource(name string, source ports.Source, since *time.Time) {
	id := sourceID(name)
	s.mu.Lock()
	s.sources[id] = source
	if since != nil {
		s.watermarks[id] = *since
	} else if _, ok := s.watermarks[id]; !ok {
		s.watermarks[id] = defaultSince
	}
	s.mu.Unlock()
	s.OrdersChanged()
}

// SourceNames lists the registered source ids.
func (s *Scheduler) SourceNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	return names
}

// Watermark returns the current watermark for a source.
func (s *Scheduler) Watermark(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.watermarks[sourceID(name)]
	return ts, ok
}

// Start runs one immediate poll cycle and then schedules recurring cycles.
// Calling Start again restarts the background loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.PollOnce(ctx)

	pullCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelPull != nil {
		s.cancelPull()
	}
	s.cancelPull = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pullCtx.Done():
				return
			case <-ticker.C:
				s.PollOnce(pullCtx)
			}
		}
	}()
}

// StopBackgroundPull cancels pending recurring cycles. Safe to call when no
// loop is running; an in-flight cycle still completes.
func (s *Scheduler) StopBackgroundPull() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelPull != nil {
		s.cancelPull()
		s.cancelPull = nil
	}
}

type pollResult struct {
	source  string
	records []domain.CanonicalOrder
	elapsed time.Duration
	err     error
}

// PollOnce runs one poll cycle: every registered source is fetched
// concurrently, each successful result is merged as a batch in resolution
// order, and only successful sources advance their watermark. A failing
// source is logged and retried with the same window next cycle.
func (s *Scheduler) PollOnce(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, "Scheduler.PollOnce")
	defer span.End()

	s.mu.Lock()
	type pending struct {
		source string
		src    ports.Source
		param  ports.SearchParam
	}
	batch := make([]pending, 0, len(s.sources))
	for name, src := range s.sources {
		param := ports.SearchParam{Limit: s.pageSize}
		if mark, ok := s.watermarks[name]; ok {
			since := mark
			param.StartDate = &since
		}
		batch = append(batch, pending{source: name, src: src, param: param})
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	telemetry.AddSpanAttributes(span, attribute.Int("sources", len(batch)))

	results := make(chan pollResult, len(batch))
	for _, p := range batch {
		go func(p pending) {
			start := s.now()
			records, err := p.src.Fetch(ctx, p.param)
			results <- pollResult{source: p.source, records: records, elapsed: s.now().Sub(start), err: err}
		}(p)
	}

	merged := 0
	advanced := false
	for range batch {
		r := <-results
		s.metrics.RecordPoll(ctx, r.source, r.err == nil, r.elapsed.Seconds())
		if r.err != nil {
			s.logger.Error("source poll failed", "source", r.source, "error", r.err)
			continue
		}

		s.mergeBatch(ctx, r.source, r.records)
		merged += len(r.records)

		s.mu.Lock()
		s.watermarks[r.source] = s.now()
		s.mu.Unlock()
		advanced = true
	}

	if advanced {
		if err := s.configs.SaveWatermarks(ctx, s.watermarkSnapshot()); err != nil {
			s.logger.Error("persist watermarks", "error", err)
		}
	}

	s.OrdersChanged()
	s.alerts.Publish(merged)
}

// mergeBatch wraps one source's records, persists the new ones, and upserts
// them into the order store. The batch merges atomically with respect to
// other sources because the store mutation holds the scheduler lock.
func (s *Scheduler) mergeBatch(ctx context.Context, source string, records []domain.CanonicalOrder) {
	if len(records) == 0 {
		return
	}
	now := s.now()

	orders := make([]*domain.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, domain.NewOrder(source, rec, now))
	}

	s.mu.Lock()
	fresh := make(map[string]bool, len(orders))
	for _, order := range orders {
		_, seen := s.bucket.Get(order.UniqueID())
		fresh[order.UniqueID()] = !seen
		s.bucket.Add(order)
	}
	s.mu.Unlock()

	for _, order := range orders {
		s.persistIngested(ctx, order, fresh[order.UniqueID()])
	}

	s.metrics.RecordMerged(ctx, source, len(records))
}

// persistIngested gives a feed-sourced order its storage identity. The
// ingested event fires only for natural keys the store had not seen, so an
// unchanged feed re-polled every interval stays quiet. A write failure is
// logged, not fatal: the record stays in the store and the next poll retries
// the upsert.
func (s *Scheduler) persistIngested(ctx context.Context, order *domain.Order, fresh bool) {
	if err := s.repo.Upsert(ctx, order); err != nil {
		s.logger.Warn("persist ingested order", "order", order.UniqueID(), "error", err)
		return
	}
	if !fresh {
		return
	}
	if err := s.events.PublishOrderIngested(ctx, order.Source, order.ID); err != nil {
		s.logger.Warn("publish order ingested", "order", order.UniqueID(), "error", err)
	}
}

func (s *Scheduler) watermarkSnapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]time.Time, len(s.watermarks))
	for name, ts := range s.watermarks {
		snapshot[name] = ts
	}
	return snapshot
}

// QueryFilter narrows a query-mode fetch. Unlike background ingestion it
// reads storage directly and shares no watermark state.
type QueryFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	Confirmed      *bool
	Assigned       *bool
	DeliveryStatus *domain.DeliveryStatus
	Items          []domain.OrderItem
	Sources        []string
	AgentID        string
	Phone          string
	Limit          int
}

// FetchOrders issues one paged, filtered read against storage and replaces
// the order store contents with the page result. A newer call supersedes an
// in-flight one; the stale response is discarded silently.
func (s *Scheduler) FetchOrders(ctx context.Context, page int, filter QueryFilter) error {
	generation := s.queryGen.Add(1)
	queryCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancelQuery != nil {
		s.cancelQuery()
	}
	s.cancelQuery = cancel
	s.loading = true
	s.mu.Unlock()
	s.OrdersChanged()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	listFilter := ports.ListFilter{
		StartDate:      filter.StartDate,
		EndDate:        filter.EndDate,
		Confirmed:      filter.Confirmed,
		Assigned:       filter.Assigned,
		DeliveryStatus: filter.DeliveryStatus,
		Items:          filter.Items,
		Sources:        filter.Sources,
		AgentID:        filter.AgentID,
		Phone:          filter.Phone,
		Page:           page,
		PageSize:       limit,
	}

	orders, total, err := s.repo.List(queryCtx, listFilter)

	if s.queryGen.Load() != generation {
		// Superseded by a newer call; latest wins.
		return nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.OrdersChanged()
		return fmt.Errorf("query orders: %w", err)
	}

	now := s.now()
	var backfilled []*domain.Order
	s.mu.Lock()
	s.bucket.Clear()
	for i := range orders {
		order := &orders[i]
		if order.Normalize(now) {
			backfilled = append(backfilled, order)
		}
		s.bucket.Add(order)
	}
	s.totalOrders = total
	s.loading = false
	s.mu.Unlock()

	// Best-effort backfill of missing delivery timestamps on legacy rows;
	// failures are logged and never surface to the caller.
	for _, order := range backfilled {
		if err := s.repo.Upsert(ctx, order); err != nil {
			s.logger.Warn("backfill delivered_on", "order", order.UniqueID(), "error", err)
		}
	}

	s.OrdersChanged()
	return nil
}

// DeleteOrder removes the order from storage by its natural key and from the
// order store.
func (s *Scheduler) DeleteOrder(ctx context.Context, order *domain.Order) error {
	if err := s.repo.DeleteByNaturalKey(ctx, order.Source, order.ID); err != nil {
		return fmt.Errorf("delete order %s: %w", order.UniqueID(), err)
	}
	s.mu.Lock()
	s.bucket.Remove(order)
	s.mu.Unlock()

	if err := s.events.PublishOrderDeleted(ctx, order.Source, order.ID); err != nil {
		s.logger.Warn("publish order deleted", "order", order.UniqueID(), "error", err)
	}
	s.OrdersChanged()
	return nil
}

// Orders returns the current aggregate order list in insertion order.
func (s *Scheduler) Orders() []*domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket.Items()
}

// Get looks an order up by its composite natural key.
func (s *Scheduler) Get(uniqueID string) (*domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket.Get(uniqueID)
}

// TotalOrders is the last known total from query mode.
func (s *Scheduler) TotalOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalOrders
}

// Loading reports whether a query-mode fetch is in flight.
func (s *Scheduler) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Subscribe returns a channel receiving the aggregate order list on change.
func (s *Scheduler) Subscribe() (<-chan []*domain.Order, func()) {
	return s.broadcast.Subscribe()
}

// Alerts returns the lightweight new-data channel: it carries only the count
// of records merged by a poll cycle, independent of the full payload.
func (s *Scheduler) Alerts() (<-chan int, func()) {
	return s.alerts.Subscribe()
}

// OrdersChanged rebroadcasts the current order list. It implements
// ports.Notifier so entity services can signal through the scheduler.
func (s *Scheduler) OrdersChanged() {
	s.broadcast.Publish(s.Orders())
}
