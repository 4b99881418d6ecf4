package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookworks/backoffice/internal/affiliates/domain"
	"github.com/bookworks/backoffice/internal/affiliates/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Affiliate, error) {
	query := `
		SELECT id, fullname, phone, email, source_list
		FROM affiliates
		WHERE id = $1
	`

	var affiliate domain.Affiliate
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&affiliate.ID,
		&affiliate.Fullname,
		&affiliate.Phone,
		&affiliate.Email,
		&affiliate.SourceList,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select affiliate: %w", err)
	}
	return &affiliate, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Affiliate, int, error) {
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
	`

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM affiliates "+where, filter.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count affiliates: %w", err)
	}

	query := `
		SELECT id, fullname, phone, email, source_list
		FROM affiliates
	` + where + `
		ORDER BY fullname
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, filter.Search, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("query affiliates: %w", err)
	}
	defer rows.Close()

	var affiliates []domain.Affiliate
	for rows.Next() {
		var affiliate domain.Affiliate
		if err := rows.Scan(
			&affiliate.ID,
			&affiliate.Fullname,
			&affiliate.Phone,
			&affiliate.Email,
			&affiliate.SourceList,
		); err != nil {
			return nil, 0, fmt.Errorf("scan affiliate: %w", err)
		}
		affiliates = append(affiliates, affiliate)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate affiliates: %w", err)
	}

	return affiliates, total, nil
}

func (r *Repository) Upsert(ctx context.Context, affiliate *domain.Affiliate) error {
	query := `
		INSERT INTO affiliates (id, fullname, phone, email, source_list)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			fullname = EXCLUDED.fullname,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			source_list = EXCLUDED.source_list
	`

	if _, err := r.pool.Exec(ctx, query,
		affiliate.ID,
		affiliate.Fullname,
		affiliate.Phone,
		affiliate.Email,
		affiliate.SourceList,
	); err != nil {
		return fmt.Errorf("upsert affiliate: %w", err)
	}
	return nil
}
