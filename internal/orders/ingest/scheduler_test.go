package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookworks/backoffice/internal/orders/adapters/memory"
	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ingest"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEventBus struct {
	mu        sync.Mutex
	ingested  []string
	delivered []string
	deleted   []string
}

func (s *stubEventBus) PublishOrderIngested(_ context.Context, source, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingested = append(s.ingested, source+"-"+id)
	return nil
}

func (s *stubEventBus) PublishOrderDelivered(_ context.Context, source, id string, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, source+"-"+id)
	return nil
}

func (s *stubEventBus) PublishOrderDeleted(_ context.Context, source, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, source+"-"+id)
	return nil
}

func feedRecord(id string, amount int64) domain.CanonicalOrder {
	return domain.CanonicalOrder{
		ID:          id,
		Fullname:    "Customer " + id,
		Phone:       "080000000" + id,
		CreatedAt:   time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC),
		Item:        domain.ItemJambScience,
		OrderAmount: amount,
	}
}

func newScheduler(t *testing.T, now func() time.Time) (*ingest.Scheduler, *memory.Repository, *memory.ConfigStore, *stubEventBus) {
	t.Helper()
	repo := memory.NewRepository()
	configs := memory.NewConfigStore()
	bus := &stubEventBus{}
	sched := ingest.NewScheduler(repo, configs, bus, discardLogger(), ingest.WithClock(now))
	if err := sched.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return sched, repo, configs, bus
}

func TestPollOnceMergesAndAdvancesWatermark(t *testing.T) {
	pollTime := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, repo, configs, bus := newScheduler(t, func() time.Time { return pollTime })

	sched.RegisterSource("shop", ports.SourceFunc(func(_ context.Context, param ports.SearchParam) ([]domain.CanonicalOrder, error) {
		if param.StartDate == nil {
			t.Error("poll did not carry a start date")
		}
		return []domain.CanonicalOrder{feedRecord("1", 10000), feedRecord("2", 8000)}, nil
	}), nil)

	sched.PollOnce(context.Background())

	if got := len(sched.Orders()); got != 2 {
		t.Fatalf("store holds %d orders, want 2", got)
	}
	if repo.Len() != 2 {
		t.Errorf("repository holds %d rows, want 2", repo.Len())
	}

	mark, ok := sched.Watermark("shop")
	if !ok || !mark.Equal(pollTime) {
		t.Errorf("watermark = %v, want %v", mark, pollTime)
	}

	persisted, err := configs.Watermarks(context.Background())
	if err != nil {
		t.Fatalf("Watermarks() failed: %v", err)
	}
	if !persisted["shop"].Equal(pollTime) {
		t.Errorf("persisted watermark = %v, want %v", persisted["shop"], pollTime)
	}

	if len(bus.ingested) != 2 {
		t.Errorf("published %d ingested events, want 2", len(bus.ingested))
	}
}

func TestPollOnceEmptyResultStillAdvancesWatermark(t *testing.T) {
	pollTime := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, _, _, _ := newScheduler(t, func() time.Time { return pollTime })

	sched.RegisterSource("quiet", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return nil, nil
	}), nil)

	sched.PollOnce(context.Background())

	mark, ok := sched.Watermark("quiet")
	if !ok || !mark.Equal(pollTime) {
		t.Errorf("watermark = %v after empty success, want %v", mark, pollTime)
	}
}

func TestPollOnceIsolatesFailingSource(t *testing.T) {
	pollTime := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, _, _, _ := newScheduler(t, func() time.Time { return pollTime })

	since := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	sched.RegisterSource("good", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return []domain.CanonicalOrder{feedRecord("1", 10000)}, nil
	}), &since)
	sched.RegisterSource("broken", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return nil, errors.New("connection refused")
	}), &since)

	sched.PollOnce(context.Background())

	if got := len(sched.Orders()); got != 1 {
		t.Fatalf("store holds %d orders, want 1 from the good source", got)
	}

	goodMark, _ := sched.Watermark("good")
	if !goodMark.Equal(pollTime) {
		t.Errorf("good watermark = %v, want %v", goodMark, pollTime)
	}
	brokenMark, _ := sched.Watermark("broken")
	if !brokenMark.Equal(since) {
		t.Errorf("broken watermark = %v, want unchanged %v", brokenMark, since)
	}
}

func TestPollOnceRepollIsIdempotent(t *testing.T) {
	pollTime := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, repo, _, bus := newScheduler(t, func() time.Time { return pollTime })

	sched.RegisterSource("shop", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return []domain.CanonicalOrder{feedRecord("1", 10000)}, nil
	}), nil)

	sched.PollOnce(context.Background())
	sched.PollOnce(context.Background())

	if got := len(sched.Orders()); got != 1 {
		t.Errorf("store holds %d orders after re-poll, want 1", got)
	}
	if repo.Len() != 1 {
		t.Errorf("repository holds %d rows after re-poll, want 1", repo.Len())
	}
	// An unchanged feed announces each order once, not once per cycle.
	if len(bus.ingested) != 1 {
		t.Errorf("published %d ingested events after re-poll, want 1", len(bus.ingested))
	}
}

func TestFetchOrdersReplacesStore(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, repo, _, _ := newScheduler(t, func() time.Time { return now })

	for _, id := range []string{"1", "2", "3"} {
		order := domain.NewOrder("shop", feedRecord(id, 10000), now)
		if err := repo.Upsert(context.Background(), order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	if err := sched.FetchOrders(context.Background(), 1, ingest.QueryFilter{}); err != nil {
		t.Fatalf("FetchOrders() failed: %v", err)
	}

	if got := len(sched.Orders()); got != 3 {
		t.Errorf("store holds %d orders, want 3", got)
	}
	if sched.TotalOrders() != 3 {
		t.Errorf("TotalOrders() = %d, want 3", sched.TotalOrders())
	}
	if sched.Loading() {
		t.Error("Loading() still true after fetch completed")
	}
}

func TestFetchOrdersBackfillsDeliveredOn(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, repo, _, _ := newScheduler(t, func() time.Time { return now })

	legacy := domain.NewOrder("shop", feedRecord("1", 10000), now.Add(-48*time.Hour))
	legacy.DeliveryStatus = domain.DeliveryDelivered
	legacy.DeliveredOn = nil
	if err := repo.Upsert(context.Background(), legacy); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if err := sched.FetchOrders(context.Background(), 1, ingest.QueryFilter{}); err != nil {
		t.Fatalf("FetchOrders() failed: %v", err)
	}

	loaded, ok := sched.Get(legacy.UniqueID())
	if !ok {
		t.Fatal("order missing from store after fetch")
	}
	if loaded.DeliveredOn == nil || !loaded.DeliveredOn.Equal(now) {
		t.Errorf("DeliveredOn = %v, want backfilled %v", loaded.DeliveredOn, now)
	}

	// The backfill is persisted, a second fetch sees the stamped row.
	rows, _, err := repo.List(context.Background(), ports.ListFilter{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(rows) != 1 || rows[0].DeliveredOn == nil {
		t.Error("backfilled timestamp was not persisted")
	}
}

type blockingRepo struct {
	*memory.Repository
	release chan struct{}
	calls   chan struct{}
}

func (r *blockingRepo) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, int, error) {
	r.calls <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	return r.Repository.List(ctx, filter)
}

func TestFetchOrdersLatestWins(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo := &blockingRepo{
		Repository: memory.NewRepository(),
		release:    make(chan struct{}),
		calls:      make(chan struct{}, 2),
	}
	configs := memory.NewConfigStore()
	sched := ingest.NewScheduler(repo, configs, &stubEventBus{}, discardLogger(), ingest.WithClock(func() time.Time { return now }))

	order := domain.NewOrder("shop", feedRecord("1", 10000), now)
	if err := repo.Upsert(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- sched.FetchOrders(context.Background(), 1, ingest.QueryFilter{})
	}()
	<-repo.calls

	// The second call supersedes the first and cancels its context.
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- sched.FetchOrders(context.Background(), 1, ingest.QueryFilter{})
	}()
	<-repo.calls

	close(repo.release)

	if err := <-firstDone; err != nil {
		t.Errorf("superseded fetch returned error: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("latest fetch failed: %v", err)
	}

	if got := len(sched.Orders()); got != 1 {
		t.Errorf("store holds %d orders, want 1", got)
	}
	if sched.Loading() {
		t.Error("Loading() still true after fetches settled")
	}
}

func TestDeleteOrder(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, repo, _, bus := newScheduler(t, func() time.Time { return now })

	sched.RegisterSource("shop", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return []domain.CanonicalOrder{feedRecord("1", 10000)}, nil
	}), nil)
	sched.PollOnce(context.Background())

	order, ok := sched.Get("shop-1")
	if !ok {
		t.Fatal("order missing after poll")
	}

	if err := sched.DeleteOrder(context.Background(), order); err != nil {
		t.Fatalf("DeleteOrder() failed: %v", err)
	}

	if _, ok := sched.Get("shop-1"); ok {
		t.Error("order still in store after delete")
	}
	if repo.Len() != 0 {
		t.Errorf("repository holds %d rows after delete, want 0", repo.Len())
	}
	if len(bus.deleted) != 1 {
		t.Errorf("published %d deleted events, want 1", len(bus.deleted))
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	sched, _, _, _ := newScheduler(t, func() time.Time { return now })

	updates, cancel := sched.Subscribe()
	defer cancel()
	alerts, cancelAlerts := sched.Alerts()
	defer cancelAlerts()

	sched.RegisterSource("shop", ports.SourceFunc(func(context.Context, ports.SearchParam) ([]domain.CanonicalOrder, error) {
		return []domain.CanonicalOrder{feedRecord("1", 10000)}, nil
	}), nil)
	sched.PollOnce(context.Background())

	select {
	case orders := <-updates:
		if len(orders) != 1 {
			t.Errorf("update carried %d orders, want 1", len(orders))
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	select {
	case merged := <-alerts:
		if merged != 1 {
			t.Errorf("alert carried %d, want 1", merged)
		}
	case <-time.After(time.Second):
		t.Fatal("no alert received")
	}
}
