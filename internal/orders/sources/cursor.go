package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

// CursorSource reads feeds wrapped in a {status, data: {data, pagination}}
// envelope. It follows pagination.next links, absolute or relative, until the
// feed signals the end with a null next.
type CursorSource struct {
	url    string
	client *http.Client
}

// NewCursorSource builds an adapter for a cursor-paginated product feed.
// A nil client falls back to a default with a request timeout.
func NewCursorSource(url string, client *http.Client) *CursorSource {
	if client == nil {
		client = defaultClient()
	}
	return &CursorSource{url: url, client: client}
}

type cursorEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		Data       []cursorRecord `json:"data"`
		Pagination struct {
			Next *string `json:"next"`
		} `json:"pagination"`
	} `json:"data"`
	Meta *struct {
		Message string `json:"message"`
	} `json:"$meta"`
}

type cursorRecord struct {
	ID          json.Number `json:"id"`
	Address     string      `json:"address"`
	CreatedAt   string      `json:"created_at"`
	Email       string      `json:"email"`
	FullName    string      `json:"full_name"`
	Phone       string      `json:"phone"`
	State       string      `json:"state"`
	Amount      int64       `json:"amount"`
	ProductName string      `json:"product_name"`
}

func (s *CursorSource) Fetch(ctx context.Context, param ports.SearchParam) ([]domain.CanonicalOrder, error) {
	var results []domain.CanonicalOrder
	next := formatQuery(s.url, param)
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, fmt.Errorf("build feed request: %w", err)
		}
		rs, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch feed page: %w", err)
		}
		body, err := io.ReadAll(rs.Body)
		rs.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read feed response: %w", err)
		}
		if rs.StatusCode/100 != 2 {
			return nil, &FeedError{StatusCode: rs.StatusCode, Body: string(body)}
		}

		var envelope cursorEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode feed envelope: %w", err)
		}
		if envelope.Status != "success" {
			message := "feed reported failure"
			if envelope.Meta != nil && envelope.Meta.Message != "" {
				message = envelope.Meta.Message
			}
			return nil, &FeedError{StatusCode: rs.StatusCode, Body: message}
		}

		for _, rec := range envelope.Data.Data {
			results = append(results, rec.canonical())
		}

		next, err = s.resolveNext(envelope.Data.Pagination.Next)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// resolveNext turns a pagination link into an absolute URL. Relative links
// are resolved against the feed's base URL.
func (s *CursorSource) resolveNext(link *string) (string, error) {
	if link == nil || *link == "" {
		return "", nil
	}
	parsed, err := url.Parse(*link)
	if err != nil {
		return "", fmt.Errorf("parse pagination link %q: %w", *link, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse feed url %q: %w", s.url, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

func (r cursorRecord) canonical() domain.CanonicalOrder {
	return domain.CanonicalOrder{
		ID:          r.ID.String(),
		Address:     r.Address,
		State:       domain.NormalizeState(r.State),
		Email:       r.Email,
		Phone:       r.Phone,
		Fullname:    r.FullName,
		CreatedAt:   parseTimestamp(r.CreatedAt),
		Item:        domain.ItemFromProductName(r.ProductName),
		OrderAmount: r.Amount,
	}
}
