package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

// OffsetSource reads feeds that expose a flat JSON array with classic
// limit/offset query parameters and encode the category in a free-text
// jamb_waec field. It pages by bumping the offset until a page comes back
// shorter than the limit.
type OffsetSource struct {
	url    string
	client *http.Client
}

// NewOffsetSource builds an adapter for an offset/limit paginated feed.
// A nil client falls back to a default with a request timeout.
func NewOffsetSource(url string, client *http.Client) *OffsetSource {
	if client == nil {
		client = defaultClient()
	}
	return &OffsetSource{url: url, client: client}
}

func (s *OffsetSource) Fetch(ctx context.Context, param ports.SearchParam) ([]domain.CanonicalOrder, error) {
	var results []domain.CanonicalOrder
	offset := param.Offset
	for {
		param.Offset = offset
		body, err := s.get(ctx, formatQuery(s.url, param))
		if err != nil {
			return nil, err
		}

		var page []offsetRecord
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode feed page: %w", err)
		}
		for _, rec := range page {
			results = append(results, rec.canonical())
		}

		if len(page) < param.Limit {
			return results, nil
		}
		offset += param.Limit
	}
}

func (s *OffsetSource) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	rs, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed page: %w", err)
	}
	defer rs.Body.Close()

	body, err := io.ReadAll(rs.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}
	if rs.StatusCode/100 != 2 {
		return nil, &FeedError{StatusCode: rs.StatusCode, Body: string(body)}
	}
	return body, nil
}

type offsetRecord struct {
	ID        json.Number `json:"id"`
	Address   string      `json:"address"`
	CreatedAt string      `json:"created_at"`
	Email     string      `json:"email"`
	Fullname  string      `json:"fullname"`
	Phone     string      `json:"phone"`
	State     string      `json:"state"`
	JambWaec  string      `json:"jamb_waec"`
}

func (r offsetRecord) canonical() domain.CanonicalOrder {
	item, amount := domain.ParseCategory(r.JambWaec)
	return domain.CanonicalOrder{
		ID:          r.ID.String(),
		Address:     r.Address,
		State:       domain.NormalizeState(r.State),
		Email:       r.Email,
		Phone:       r.Phone,
		Fullname:    r.Fullname,
		CreatedAt:   parseTimestamp(r.CreatedAt),
		Item:        item,
		OrderAmount: amount,
	}
}
