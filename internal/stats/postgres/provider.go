package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bookworks/backoffice/internal/stats"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Provider computes order statistics with SQL functions installed by the
// migrations, keeping the aggregation in the database.
type Provider struct {
	pool *pgxpool.Pool
}

func NewProvider(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

func (p *Provider) EarningByDay(ctx context.Context, start, end time.Time, filter stats.Filter) ([]stats.DayEarning, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT day, value FROM earning_by_day($1, $2, $3, $4)`,
		start, end, agentParam(filter), sourcesParam(filter))
	if err != nil {
		return nil, fmt.Errorf("query earning by day: %w", err)
	}
	defer rows.Close()

	var earnings []stats.DayEarning
	for rows.Next() {
		var earning stats.DayEarning
		if err := rows.Scan(&earning.Day, &earning.Value); err != nil {
			return nil, fmt.Errorf("scan earning by day: %w", err)
		}
		earnings = append(earnings, earning)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate earning by day: %w", err)
	}
	return earnings, nil
}

func (p *Provider) EarningByMonth(ctx context.Context, start, end time.Time, filter stats.Filter) ([]stats.MonthEarning, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT month, value FROM earning_by_month($1, $2, $3, $4)`,
		start, end, agentParam(filter), sourcesParam(filter))
	if err != nil {
		return nil, fmt.Errorf("query earning by month: %w", err)
	}
	defer rows.Close()

	var earnings []stats.MonthEarning
	for rows.Next() {
		var earning stats.MonthEarning
		if err := rows.Scan(&earning.Month, &earning.Value); err != nil {
			return nil, fmt.Errorf("scan earning by month: %w", err)
		}
		earnings = append(earnings, earning)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate earning by month: %w", err)
	}
	return earnings, nil
}

func (p *Provider) OrdersByDay(ctx context.Context, start, end time.Time, filter stats.Filter) ([]stats.DayCount, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT day, count FROM orders_by_day($1, $2, $3, $4)`,
		start, end, agentParam(filter), sourcesParam(filter))
	if err != nil {
		return nil, fmt.Errorf("query orders by day: %w", err)
	}
	defer rows.Close()

	var counts []stats.DayCount
	for rows.Next() {
		var count stats.DayCount
		if err := rows.Scan(&count.Day, &count.Count); err != nil {
			return nil, fmt.Errorf("scan orders by day: %w", err)
		}
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders by day: %w", err)
	}
	return counts, nil
}

func (p *Provider) OrdersByMonth(ctx context.Context, start, end time.Time, filter stats.Filter) ([]stats.MonthCount, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT month, count FROM orders_by_month($1, $2, $3, $4)`,
		start, end, agentParam(filter), sourcesParam(filter))
	if err != nil {
		return nil, fmt.Errorf("query orders by month: %w", err)
	}
	defer rows.Close()

	var counts []stats.MonthCount
	for rows.Next() {
		var count stats.MonthCount
		if err := rows.Scan(&count.Month, &count.Count); err != nil {
			return nil, fmt.Errorf("scan orders by month: %w", err)
		}
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders by month: %w", err)
	}
	return counts, nil
}

// agentParam and sourcesParam translate zero filter values into SQL NULLs so
// the functions skip the corresponding predicate.
func agentParam(filter stats.Filter) any {
	if filter.AgentID == "" {
		return nil
	}
	return filter.AgentID
}

func sourcesParam(filter stats.Filter) any {
	if len(filter.Sources) == 0 {
		return nil
	}
	return filter.Sources
}
