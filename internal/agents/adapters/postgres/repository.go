package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bookworks/backoffice/internal/agents/domain"
	"github.com/bookworks/backoffice/internal/agents/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	query := `
		SELECT id, fullname, phone, COALESCE(email, ''), state, books
		FROM agents
		WHERE id = $1
	`

	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select agent: %w", err)
	}
	return agent, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Agent, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	where := `
		WHERE ($1::text = '' OR phone ILIKE '%' || $1 || '%' OR fullname ILIKE '%' || $1 || '%')
		  AND ($2::text = '' OR state = $2)
	`

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM agents "+where, filter.Search, filter.State).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count agents: %w", err)
	}

	query := `
		SELECT id, fullname, phone, COALESCE(email, ''), state, books
		FROM agents
	` + where + `
		ORDER BY fullname
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, filter.Search, filter.State, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate agents: %w", err)
	}

	return agents, total, nil
}

func (r *Repository) Upsert(ctx context.Context, agent *domain.Agent) error {
	books, err := json.Marshal(agent.Books)
	if err != nil {
		return fmt.Errorf("encode agent books: %w", err)
	}

	query := `
		INSERT INTO agents (id, fullname, phone, email, state, books)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			fullname = EXCLUDED.fullname,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			state = EXCLUDED.state,
			books = EXCLUDED.books
	`

	if _, err := r.pool.Exec(ctx, query, agent.ID, agent.Fullname, agent.Phone, agent.Email, agent.State, books); err != nil {
		return fmt.Errorf("upsert agent: %w", err)
	}
	return nil
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	var books []byte
	if err := row.Scan(&agent.ID, &agent.Fullname, &agent.Phone, &agent.Email, &agent.State, &books); err != nil {
		return nil, err
	}
	if len(books) > 0 {
		if err := json.Unmarshal(books, &agent.Books); err != nil {
			return nil, fmt.Errorf("decode agent books: %w", err)
		}
	}
	return &agent, nil
}
