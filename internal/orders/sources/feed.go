package sources

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bookworks/backoffice/internal/orders/ports"
)

// FeedError is a rejected feed response: a non-2xx status or a feed-level
// failure envelope. The body is kept verbatim for inspection.
type FeedError struct {
	StatusCode int
	Body       string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed responded %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

const requestTimeout = 30 * time.Second

func defaultClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// formatQuery appends the search window to a feed URL. Unset fields are
// omitted entirely rather than sent empty.
func formatQuery(base string, param ports.SearchParam) string {
	values := url.Values{}
	if param.StartDate != nil {
		values.Set("start_date", param.StartDate.Format("2006-01-02"))
	}
	if param.EndDate != nil {
		values.Set("end_date", param.EndDate.Format("2006-01-02"))
	}
	values.Set("limit", strconv.Itoa(param.Limit))
	values.Set("offset", strconv.Itoa(param.Offset))

	if strings.Contains(base, "?") {
		return base + "&" + values.Encode()
	}
	return base + "?" + values.Encode()
}

// parseTimestamp accepts the handful of layouts the feeds actually emit.
func parseTimestamp(raw string) time.Time {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
