// Package app holds the order operations service: every staff-initiated
// mutation of an order goes through here, persists, then notifies listeners.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	agentports "github.com/bookworks/backoffice/internal/agents/ports"
	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

const defaultCostPerBook = 1200

// Service executes order mutations. Orders hold only the assigned agent's id;
// the agent itself is looked up through the repository at the moment it is
// needed, never cached on the order.
type Service struct {
	repo     ports.OrderRepository
	agents   agentports.Repository
	configs  ports.ConfigStore
	events   ports.EventBus
	notifier ports.Notifier
	logger   *slog.Logger

	costPerBook atomic.Int64
	now         func() time.Time
}

// NewService wires required dependencies.
func NewService(
	repo ports.OrderRepository,
	agents agentports.Repository,
	configs ports.ConfigStore,
	events ports.EventBus,
	notifier ports.Notifier,
	logger *slog.Logger,
) *Service {
	s := &Service{
		repo:     repo,
		agents:   agents,
		configs:  configs,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	s.costPerBook.Store(defaultCostPerBook)
	return s
}

// WithClock substitutes the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Init loads the configured per-book cost.
func (s *Service) Init(ctx context.Context) error {
	cost, err := s.configs.BookCost(ctx)
	if err != nil {
		return fmt.Errorf("load book cost: %w", err)
	}
	s.costPerBook.Store(cost)
	return nil
}

// CostPerBook is the current per-book cost used in financial derivation.
func (s *Service) CostPerBook() int64 {
	return s.costPerBook.Load()
}

// SetCostPerBook persists a new per-book cost.
func (s *Service) SetCostPerBook(ctx context.Context, cost int64) error {
	if cost <= 0 {
		return fmt.Errorf("cost per book must be positive")
	}
	if err := s.configs.SaveBookCost(ctx, cost); err != nil {
		return fmt.Errorf("save book cost: %w", err)
	}
	s.costPerBook.Store(cost)
	return nil
}

// AssignAgent sets the agent id and stamps the assignment time. Assignment is
// a one-way transition; re-assigning to another agent is allowed while the
// order is mutable.
func (s *Service) AssignAgent(ctx context.Context, order *domain.Order, agentID string) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("look up agent %s: %w", agentID, err)
	}
	assignedOn := s.now()
	order.AgentID = agent.ID
	order.AssignedOn = &assignedOn
	return s.persist(ctx, order)
}

// UnassignAgent is not part of the finalized design.
func (s *Service) UnassignAgent(context.Context, *domain.Order) error {
	return domain.ErrTransitionNotSupported
}

// ConfirmOrder stamps the confirmation time. Confirming an already confirmed
// order is a no-op.
func (s *Service) ConfirmOrder(ctx context.Context, order *domain.Order) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	if order.IsConfirmed() {
		return nil
	}
	confirmedOn := s.now()
	order.ConfirmedOn = &confirmedOn
	return s.persist(ctx, order)
}

// UnconfirmOrder is not part of the finalized design.
func (s *Service) UnconfirmOrder(context.Context, *domain.Order) error {
	return domain.ErrTransitionNotSupported
}

// UpdateAddress replaces the delivery state and street address.
func (s *Service) UpdateAddress(ctx context.Context, order *domain.Order, state, address string) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	order.State = state
	order.Address = address
	return s.persist(ctx, order)
}

// UpdateOrderItem overrides the order category.
func (s *Service) UpdateOrderItem(ctx context.Context, order *domain.Order, item domain.OrderItem) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	order.Item = item
	return s.persist(ctx, order)
}

// UpdateAmount overrides the paid amount and recomputes the office charge.
func (s *Service) UpdateAmount(ctx context.Context, order *domain.Order, amount int64) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	order.OrderAmount = amount
	order.OfficeCharge = domain.DefaultOfficeCharge(amount)
	return s.persist(ctx, order)
}

// UpdateOfficeCharge overrides the derived office charge.
func (s *Service) UpdateOfficeCharge(ctx context.Context, order *domain.Order, amount int64) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	order.OfficeCharge = amount
	return s.persist(ctx, order)
}

// SetBookConfiguration stages a book allocation in memory without persisting,
// as a step before a composite update.
func (s *Service) SetBookConfiguration(order *domain.Order, books domain.BookConfig) {
	order.Books = books
}

// UpdateBookConfiguration replaces the book allocation, gated on the paid
// amount covering the resulting cost.
func (s *Service) UpdateBookConfiguration(ctx context.Context, order *domain.Order, books domain.BookConfig) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}
	if !order.ConfigValidForPaidAmount(books, order.DeliveryCost, s.CostPerBook()) {
		return domain.ErrAmountExceeded
	}
	order.Books = books
	return s.persist(ctx, order)
}

// UpdateDelivery moves the order between delivery states. Transitioning to
// delivered validates everything up front, debits the assigned agent's book
// stock subject by subject, persists the agent, then the order. Nothing is
// written until all checks pass; a failure after the agent write is surfaced
// loudly as a reconciliation problem rather than swallowed.
func (s *Service) UpdateDelivery(ctx context.Context, order *domain.Order, status domain.DeliveryStatus, deliveryCost int64) error {
	if !order.CanMutate() {
		return domain.ErrOrderImmutable
	}

	if status != domain.DeliveryDelivered {
		order.DeliveryStatus = status
		order.DeliveryCost = deliveryCost
		return s.persist(ctx, order)
	}

	if deliveryCost <= 0 {
		return domain.ErrMissingDeliveryCost
	}
	if len(order.Books) == 0 {
		return domain.ErrNoBooks
	}
	if !order.ConfigValidForPaidAmount(order.Books, deliveryCost, s.CostPerBook()) {
		return domain.ErrAmountExceeded
	}
	if !order.IsAssigned() {
		return domain.ErrNoAgent
	}

	agent, err := s.agents.GetByID(ctx, order.AgentID)
	if err != nil {
		if errors.Is(err, agentports.ErrNotFound) {
			return domain.ErrNoAgent
		}
		return fmt.Errorf("look up agent %s: %w", order.AgentID, err)
	}

	remaining, err := agent.DebitBooks(order.Books)
	if err != nil {
		return err
	}
	agent.Books = remaining
	if err := s.agents.Upsert(ctx, agent); err != nil {
		return fmt.Errorf("persist agent stock: %w", err)
	}

	deliveredOn := s.now()
	order.DeliveryStatus = domain.DeliveryDelivered
	order.DeliveryCost = deliveryCost
	order.DeliveredOn = &deliveredOn
	if err := s.repo.Upsert(ctx, order); err != nil {
		return fmt.Errorf("order persist failed after agent stock debit, reconciliation required: %w", err)
	}

	if err := s.events.PublishOrderDelivered(ctx, order.Source, order.ID, deliveryCost); err != nil {
		s.logger.Warn("publish order delivered", "order", order.UniqueID(), "error", err)
	}
	s.notifier.OrdersChanged()
	return nil
}

func (s *Service) persist(ctx context.Context, order *domain.Order) error {
	if err := s.repo.Upsert(ctx, order); err != nil {
		return fmt.Errorf("persist order %s: %w", order.UniqueID(), err)
	}
	s.notifier.OrdersChanged()
	return nil
}
