package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	agentmemory "github.com/bookworks/backoffice/internal/agents/adapters/memory"
	agentdomain "github.com/bookworks/backoffice/internal/agents/domain"
	ordermemory "github.com/bookworks/backoffice/internal/orders/adapters/memory"
	"github.com/bookworks/backoffice/internal/orders/app"
	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

type stubEventBus struct {
	delivered int
}

func (s *stubEventBus) PublishOrderIngested(context.Context, string, string) error { return nil }
func (s *stubEventBus) PublishOrderDeleted(context.Context, string, string) error  { return nil }
func (s *stubEventBus) PublishOrderDelivered(context.Context, string, string, int64) error {
	s.delivered++
	return nil
}

type fixture struct {
	service *app.Service
	orders  *ordermemory.Repository
	agents  *agentmemory.Repository
	events  *stubEventBus
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders: ordermemory.NewRepository(),
		agents: agentmemory.NewRepository(),
		events: &stubEventBus{},
		now:    time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = app.NewService(
		f.orders,
		f.agents,
		ordermemory.NewConfigStore(),
		f.events,
		ports.NoopNotifier{},
		logger,
	).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) seedAgent(t *testing.T, books agentdomain.Books) *agentdomain.Agent {
	t.Helper()
	agent := &agentdomain.Agent{ID: "agent-1", Fullname: "Musa", Phone: "0801", State: "Lagos", Books: books}
	if err := f.agents.Upsert(context.Background(), agent); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

func (f *fixture) seedOrder(t *testing.T) *domain.Order {
	t.Helper()
	order := domain.NewOrder("shop", domain.CanonicalOrder{
		ID:          "1",
		Fullname:    "Ada",
		Phone:       "0802",
		CreatedAt:   f.now.Add(-time.Hour),
		Item:        domain.ItemJambScience,
		OrderAmount: 10000,
	}, f.now)
	if err := f.orders.Upsert(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestUpdateDelivery(t *testing.T) {
	t.Run("delivering debits the agent and stamps the order", func(t *testing.T) {
		f := newFixture(t)
		f.seedAgent(t, agentdomain.Books{"Mathematics": 5, "English": 3})
		order := f.seedOrder(t)
		order.AgentID = "agent-1"
		order.Books = domain.BookConfig{"Mathematics": 2, "English": 1}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		if err != nil {
			t.Fatalf("UpdateDelivery() failed: %v", err)
		}

		if order.DeliveryStatus != domain.DeliveryDelivered {
			t.Errorf("DeliveryStatus = %q, want delivered", order.DeliveryStatus)
		}
		if order.DeliveredOn == nil || !order.DeliveredOn.Equal(f.now) {
			t.Errorf("DeliveredOn = %v, want %v", order.DeliveredOn, f.now)
		}
		if order.DeliveryCost != 500 {
			t.Errorf("DeliveryCost = %d, want 500", order.DeliveryCost)
		}

		agent, err := f.agents.GetByID(context.Background(), "agent-1")
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if agent.Books["Mathematics"] != 3 || agent.Books["English"] != 2 {
			t.Errorf("agent books = %v, want Mathematics:3 English:2", agent.Books)
		}

		if f.events.delivered != 1 {
			t.Errorf("published %d delivered events, want 1", f.events.delivered)
		}
	})

	t.Run("insufficient stock leaves agent and order untouched", func(t *testing.T) {
		f := newFixture(t)
		f.seedAgent(t, agentdomain.Books{"Mathematics": 1})
		order := f.seedOrder(t)
		order.AgentID = "agent-1"
		order.Books = domain.BookConfig{"Mathematics": 2}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)

		var stockErr *agentdomain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("UpdateDelivery() error = %v, want InsufficientStockError", err)
		}

		agent, _ := f.agents.GetByID(context.Background(), "agent-1")
		if agent.Books["Mathematics"] != 1 {
			t.Errorf("agent books = %v, want untouched", agent.Books)
		}
		if order.DeliveryStatus == domain.DeliveryDelivered {
			t.Error("order marked delivered despite failed debit")
		}
		if f.events.delivered != 0 {
			t.Error("delivered event published despite failed debit")
		}
	})

	t.Run("missing subject counts as insufficient stock", func(t *testing.T) {
		f := newFixture(t)
		f.seedAgent(t, agentdomain.Books{"Mathematics": 5})
		order := f.seedOrder(t)
		order.AgentID = "agent-1"
		order.Books = domain.BookConfig{"Chemistry": 1}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		var stockErr *agentdomain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("UpdateDelivery() error = %v, want InsufficientStockError", err)
		}
	})

	t.Run("requires a positive delivery cost", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)
		order.Books = domain.BookConfig{"Mathematics": 1}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 0)
		if !errors.Is(err, domain.ErrMissingDeliveryCost) {
			t.Errorf("UpdateDelivery() error = %v, want ErrMissingDeliveryCost", err)
		}
	})

	t.Run("requires a book allocation", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		if !errors.Is(err, domain.ErrNoBooks) {
			t.Errorf("UpdateDelivery() error = %v, want ErrNoBooks", err)
		}
	})

	t.Run("rejects cost exceeding the paid amount", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)
		order.Books = domain.BookConfig{"Mathematics": 9}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		if !errors.Is(err, domain.ErrAmountExceeded) {
			t.Errorf("UpdateDelivery() error = %v, want ErrAmountExceeded", err)
		}
	})

	t.Run("requires an assigned agent", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)
		order.Books = domain.BookConfig{"Mathematics": 1}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		if !errors.Is(err, domain.ErrNoAgent) {
			t.Errorf("UpdateDelivery() error = %v, want ErrNoAgent", err)
		}
	})

	t.Run("vanished agent surfaces as ErrNoAgent", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)
		order.AgentID = "ghost"
		order.Books = domain.BookConfig{"Mathematics": 1}

		err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500)
		if !errors.Is(err, domain.ErrNoAgent) {
			t.Errorf("UpdateDelivery() error = %v, want ErrNoAgent", err)
		}
	})

	t.Run("pending transition just persists", func(t *testing.T) {
		f := newFixture(t)
		order := f.seedOrder(t)

		if err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryPending, 700); err != nil {
			t.Fatalf("UpdateDelivery() failed: %v", err)
		}
		if order.DeliveryCost != 700 {
			t.Errorf("DeliveryCost = %d, want 700", order.DeliveryCost)
		}
	})
}

func TestDeliveredOrderIsFrozen(t *testing.T) {
	f := newFixture(t)
	f.seedAgent(t, agentdomain.Books{"Mathematics": 5})
	order := f.seedOrder(t)
	order.AgentID = "agent-1"
	order.Books = domain.BookConfig{"Mathematics": 1}

	if err := f.service.UpdateDelivery(context.Background(), order, domain.DeliveryDelivered, 500); err != nil {
		t.Fatalf("UpdateDelivery() failed: %v", err)
	}

	mutations := map[string]error{
		"confirm":       f.service.ConfirmOrder(context.Background(), order),
		"assign":        f.service.AssignAgent(context.Background(), order, "agent-1"),
		"address":       f.service.UpdateAddress(context.Background(), order, "Lagos", "12 Marina"),
		"item":          f.service.UpdateOrderItem(context.Background(), order, domain.ItemWaecArt),
		"amount":        f.service.UpdateAmount(context.Background(), order, 20000),
		"office charge": f.service.UpdateOfficeCharge(context.Background(), order, 100),
		"books":         f.service.UpdateBookConfiguration(context.Background(), order, domain.BookConfig{"English": 1}),
		"delivery":      f.service.UpdateDelivery(context.Background(), order, domain.DeliveryPending, 0),
	}
	for name, err := range mutations {
		if !errors.Is(err, domain.ErrOrderImmutable) {
			t.Errorf("%s on delivered order: error = %v, want ErrOrderImmutable", name, err)
		}
	}
}

func TestConfirmOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)

	if err := f.service.ConfirmOrder(context.Background(), order); err != nil {
		t.Fatalf("ConfirmOrder() failed: %v", err)
	}
	if order.ConfirmedOn == nil || !order.ConfirmedOn.Equal(f.now) {
		t.Fatalf("ConfirmedOn = %v, want %v", order.ConfirmedOn, f.now)
	}

	// Confirming again is a no-op, the original timestamp survives.
	f.now = f.now.Add(time.Hour)
	if err := f.service.ConfirmOrder(context.Background(), order); err != nil {
		t.Fatalf("second ConfirmOrder() failed: %v", err)
	}
	if !order.ConfirmedOn.Equal(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("ConfirmedOn = %v, want original timestamp", order.ConfirmedOn)
	}
}

func TestAssignAgent(t *testing.T) {
	f := newFixture(t)
	f.seedAgent(t, nil)
	order := f.seedOrder(t)

	if err := f.service.AssignAgent(context.Background(), order, "agent-1"); err != nil {
		t.Fatalf("AssignAgent() failed: %v", err)
	}
	if order.AgentID != "agent-1" {
		t.Errorf("AgentID = %q, want agent-1", order.AgentID)
	}
	if order.AssignedOn == nil || !order.AssignedOn.Equal(f.now) {
		t.Errorf("AssignedOn = %v, want %v", order.AssignedOn, f.now)
	}

	t.Run("unknown agent fails", func(t *testing.T) {
		if err := f.service.AssignAgent(context.Background(), order, "nobody"); err == nil {
			t.Error("AssignAgent() with unknown agent did not fail")
		}
	})
}

func TestReverseTransitionsNotSupported(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)

	if err := f.service.UnconfirmOrder(context.Background(), order); !errors.Is(err, domain.ErrTransitionNotSupported) {
		t.Errorf("UnconfirmOrder() error = %v, want ErrTransitionNotSupported", err)
	}
	if err := f.service.UnassignAgent(context.Background(), order); !errors.Is(err, domain.ErrTransitionNotSupported) {
		t.Errorf("UnassignAgent() error = %v, want ErrTransitionNotSupported", err)
	}
}

func TestUpdateAmountRecomputesOfficeCharge(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)

	if err := f.service.UpdateAmount(context.Background(), order, 20000); err != nil {
		t.Fatalf("UpdateAmount() failed: %v", err)
	}
	if order.OrderAmount != 20000 {
		t.Errorf("OrderAmount = %d, want 20000", order.OrderAmount)
	}
	if order.OfficeCharge != 2000 {
		t.Errorf("OfficeCharge = %d, want 2000", order.OfficeCharge)
	}
}

func TestUpdateBookConfiguration(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t)

	t.Run("accepts an affordable allocation", func(t *testing.T) {
		if err := f.service.UpdateBookConfiguration(context.Background(), order, domain.BookConfig{"Mathematics": 2}); err != nil {
			t.Fatalf("UpdateBookConfiguration() failed: %v", err)
		}
		if order.Books["Mathematics"] != 2 {
			t.Errorf("Books = %v, want Mathematics:2", order.Books)
		}
	})

	t.Run("rejects an allocation the amount cannot cover", func(t *testing.T) {
		err := f.service.UpdateBookConfiguration(context.Background(), order, domain.BookConfig{"Mathematics": 50})
		if !errors.Is(err, domain.ErrAmountExceeded) {
			t.Errorf("UpdateBookConfiguration() error = %v, want ErrAmountExceeded", err)
		}
		if order.Books["Mathematics"] != 2 {
			t.Errorf("Books = %v, want previous allocation kept", order.Books)
		}
	})
}

func TestCostPerBook(t *testing.T) {
	f := newFixture(t)

	if err := f.service.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if f.service.CostPerBook() != 1200 {
		t.Errorf("CostPerBook() = %d, want default 1200", f.service.CostPerBook())
	}

	if err := f.service.SetCostPerBook(context.Background(), 1500); err != nil {
		t.Fatalf("SetCostPerBook() failed: %v", err)
	}
	if f.service.CostPerBook() != 1500 {
		t.Errorf("CostPerBook() = %d, want 1500", f.service.CostPerBook())
	}

	if err := f.service.SetCostPerBook(context.Background(), 0); err == nil {
		t.Error("SetCostPerBook(0) did not fail")
	}
}
