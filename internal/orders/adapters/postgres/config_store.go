package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultBookCost = 1200

// ConfigStore keeps the watermark map and the per-book cost in the configs
// table, one JSON blob per named row.
type ConfigStore struct {
	pool *pgxpool.Pool
}

func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Watermarks reads the per-source poll timestamps. A missing row means no
// source has been polled yet.
func (s *ConfigStore) Watermarks(ctx context.Context) (map[string]time.Time, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, "SELECT value FROM configs WHERE name = 'timestamp'").Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]time.Time{}, nil
		}
		return nil, fmt.Errorf("select watermarks: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, fmt.Errorf("decode watermarks: %w", err)
	}

	marks := make(map[string]time.Time, len(raw))
	for source, stamp := range raw {
		if stamp == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return nil, fmt.Errorf("decode watermark for %s: %w", source, err)
		}
		marks[source] = ts
	}
	return marks, nil
}

func (s *ConfigStore) SaveWatermarks(ctx context.Context, marks map[string]time.Time) error {
	raw := make(map[string]string, len(marks))
	for source, ts := range marks {
		raw[source] = ts.Format(time.RFC3339)
	}
	value, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode watermarks: %w", err)
	}

	query := `
		INSERT INTO configs (name, value, type)
		VALUES ('timestamp', $1, 'json')
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.pool.Exec(ctx, query, value); err != nil {
		return fmt.Errorf("upsert watermarks: %w", err)
	}
	return nil
}

// BookCost reads the configured per-book cost, seeding the default when the
// row does not exist yet.
func (s *ConfigStore) BookCost(ctx context.Context) (int64, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, "SELECT value FROM configs WHERE name = 'book_cost'").Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := s.SaveBookCost(ctx, defaultBookCost); err != nil {
				return 0, err
			}
			return defaultBookCost, nil
		}
		return 0, fmt.Errorf("select book cost: %w", err)
	}

	var cost int64
	if err := json.Unmarshal(value, &cost); err != nil {
		return 0, fmt.Errorf("decode book cost: %w", err)
	}
	return cost, nil
}

func (s *ConfigStore) SaveBookCost(ctx context.Context, cost int64) error {
	value, err := json.Marshal(cost)
	if err != nil {
		return fmt.Errorf("encode book cost: %w", err)
	}

	query := `
		INSERT INTO configs (name, value, type)
		VALUES ('book_cost', $1, 'number')
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := s.pool.Exec(ctx, query, value); err != nil {
		return fmt.Errorf("upsert book cost: %w", err)
	}
	return nil
}
