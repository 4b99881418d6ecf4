package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bookworks/backoffice/internal/agents/domain"
	"github.com/bookworks/backoffice/internal/agents/ports"
)

// Repository provides an in-memory agent store for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	agents map[string]domain.Agent
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{agents: make(map[string]domain.Agent)}
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := agent
	copied.Books = cloneBooks(agent.Books)
	return &copied, nil
}

func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Agent, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.Agent
	for _, agent := range r.agents {
		if filter.State != "" && agent.State != filter.State {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(agent.Phone), needle) &&
				!strings.Contains(strings.ToLower(agent.Fullname), needle) {
				continue
			}
		}
		copied := agent
		copied.Books = cloneBooks(agent.Books)
		matched = append(matched, copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Fullname < matched[j].Fullname
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
		return []domain.Agent{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *Repository) Upsert(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *agent
	stored.Books = cloneBooks(agent.Books)
	r.agents[agent.ID] = stored
	return nil
}

func cloneBooks(books domain.Books) domain.Books {
	if books == nil {
		return nil
	}
	out := make(domain.Books, len(books))
	for subject, count := range books {
		out[subject] = count
	}
	return out
}
