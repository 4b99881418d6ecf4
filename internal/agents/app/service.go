package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/bookworks/backoffice/internal/agents/domain"
	"github.com/bookworks/backoffice/internal/agents/ports"
	"github.com/google/uuid"
)

// Service bundles agent use cases for the API.
type Service struct {
	repo ports.Repository
}

// NewService wires required dependencies.
func NewService(repo ports.Repository) *Service {
	return &Service{repo: repo}
}

// CreateAgentInput captures payload for registering an agent.
type CreateAgentInput struct {
	Fullname string       `json:"fullname"`
	Phone    string       `json:"phone"`
	Email    string       `json:"email"`
	State    string       `json:"state"`
	Books    domain.Books `json:"books"`
}

func (in CreateAgentInput) validate() error {
	if strings.TrimSpace(in.Fullname) == "" {
		return fmt.Errorf("fullname is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(in.State) == "" {
		return fmt.Errorf("state is required")
	}
	return nil
}

// CreateAgent registers a locally created agent with a generated id.
func (s *Service) CreateAgent(ctx context.Context, input CreateAgentInput) (*domain.Agent, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	agent := &domain.Agent{
		ID:       uuid.NewString(),
		Fullname: input.Fullname,
		Phone:    input.Phone,
		Email:    input.Email,
		State:    input.State,
		Books:    input.Books,
	}
	if err := s.repo.Upsert(ctx, agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return agent, nil
}

// GetAgent retrieves an agent by id.
func (s *Service) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAgents returns agents using a filter plus the exact total.
func (s *Service) ListAgents(ctx context.Context, filter ports.ListFilter) ([]domain.Agent, int, error) {
	return s.repo.List(ctx, filter)
}

// UpdateBooks replaces an agent's book inventory.
func (s *Service) UpdateBooks(ctx context.Context, id string, books domain.Books) (*domain.Agent, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	agent.Books = books
	if err := s.repo.Upsert(ctx, agent); err != nil {
		return nil, fmt.Errorf("update agent books: %w", err)
	}
	return agent, nil
}
