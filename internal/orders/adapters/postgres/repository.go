package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes the order keyed on its natural (source, source_id) pair and
// fills in the storage id on first insert.
func (r *Repository) Upsert(ctx context.Context, order *domain.Order) error {
	books, err := encodeBooks(order.Books)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			source, source_id, email, fullname, phone, address, state,
			item, order_amount, agent_id, delivery_status, delivery_cost,
			office_charge, books, assigned_on, confirmed_on, delivered_on, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (source, source_id) DO UPDATE SET
			email = EXCLUDED.email,
			fullname = EXCLUDED.fullname,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			state = EXCLUDED.state,
			item = EXCLUDED.item,
			order_amount = EXCLUDED.order_amount,
			agent_id = EXCLUDED.agent_id,
			delivery_status = EXCLUDED.delivery_status,
			delivery_cost = EXCLUDED.delivery_cost,
			office_charge = EXCLUDED.office_charge,
			books = EXCLUDED.books,
			assigned_on = EXCLUDED.assigned_on,
			confirmed_on = EXCLUDED.confirmed_on,
			delivered_on = EXCLUDED.delivered_on
		RETURNING id
	`

	var storageID string
	err = r.pool.QueryRow(ctx, query,
		order.Source,
		order.ID,
		order.Email,
		order.Fullname,
		order.Phone,
		order.Address,
		order.State,
		string(order.Item),
		order.OrderAmount,
		order.AgentID,
		string(order.DeliveryStatus),
		nullableCost(order.DeliveryCost),
		order.OfficeCharge,
		books,
		order.AssignedOn,
		order.ConfirmedOn,
		order.DeliveredOn,
		order.CreatedAt,
	).Scan(&storageID)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}

	order.StorageID = storageID
	return nil
}

// List runs a filtered, paged read ordered newest first and returns the exact
// total for the filter.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, int, error) {
	where, args := buildWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	query := `
		SELECT id, source, source_id, email, fullname, phone, address, state,
			item, order_amount, COALESCE(agent_id, ''), delivery_status,
			COALESCE(delivery_cost, 0), office_charge, books,
			assigned_on, confirmed_on, delivered_on, created_at
		FROM orders` + where + fmt.Sprintf(`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, len(args)+1, len(args)+2)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, total, nil
}

// DeleteByNaturalKey removes the order row identified by its feed-native
// source and id, not the storage primary key.
func (r *Repository) DeleteByNaturalKey(ctx context.Context, source, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM orders WHERE source = $1 AND source_id = $2", source, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func buildWhere(filter ports.ListFilter) (string, []any) {
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StartDate != nil {
		clauses = append(clauses, "created_at >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "created_at <= "+arg(*filter.EndDate))
	}
	if filter.Confirmed != nil {
		if *filter.Confirmed {
			clauses = append(clauses, "confirmed_on IS NOT NULL")
		} else {
			clauses = append(clauses, "confirmed_on IS NULL")
		}
	}
	if filter.Assigned != nil {
		if *filter.Assigned {
			clauses = append(clauses, "agent_id IS NOT NULL")
		} else {
			clauses = append(clauses, "agent_id IS NULL")
		}
	}
	if filter.DeliveryStatus != nil {
		clauses = append(clauses, "delivery_status = "+arg(string(*filter.DeliveryStatus)))
	}
	if len(filter.Items) > 0 {
		items := make([]string, len(filter.Items))
		for i, item := range filter.Items {
			items[i] = string(item)
		}
		clauses = append(clauses, "item = ANY("+arg(items)+")")
	}
	if len(filter.Sources) > 0 {
		clauses = append(clauses, "source = ANY("+arg(filter.Sources)+")")
	}
	if filter.AgentID != "" {
		clauses = append(clauses, "agent_id = "+arg(filter.AgentID))
	}
	if filter.Phone != "" {
		clauses = append(clauses, "phone ILIKE '%' || "+arg(filter.Phone)+" || '%'")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	var item, status string
	var books []byte
	err := row.Scan(
		&order.StorageID,
		&order.Source,
		&order.ID,
		&order.Email,
		&order.Fullname,
		&order.Phone,
		&order.Address,
		&order.State,
		&item,
		&order.OrderAmount,
		&order.AgentID,
		&status,
		&order.DeliveryCost,
		&order.OfficeCharge,
		&books,
		&order.AssignedOn,
		&order.ConfirmedOn,
		&order.DeliveredOn,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Item = domain.OrderItem(item)
	order.DeliveryStatus = domain.DeliveryStatus(status)
	if len(books) > 0 {
		if err := json.Unmarshal(books, &order.Books); err != nil {
			return nil, fmt.Errorf("decode order books: %w", err)
		}
	}
	return &order, nil
}

func encodeBooks(books domain.BookConfig) ([]byte, error) {
	if books == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(books)
	if err != nil {
		return nil, fmt.Errorf("encode order books: %w", err)
	}
	return encoded, nil
}

func nullableCost(cost int64) *int64 {
	if cost == 0 {
		return nil
	}
	return &cost
}
