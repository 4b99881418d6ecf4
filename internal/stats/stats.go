package stats

import (
	"context"
	"time"
)

// DayEarning is one day's worth of delivered-order profit.
type DayEarning struct {
	Day   time.Time `json:"day"`
	Value int64     `json:"value"`
}

// MonthEarning aggregates delivered-order profit over a calendar month.
type MonthEarning struct {
	Month time.Time `json:"month"`
	Value int64     `json:"value"`
}

// DayCount is the number of orders created on a day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// MonthCount is the number of orders created in a calendar month.
type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// Filter narrows aggregates to one agent or to the order sources attributed
// to an affiliate. Zero values mean no narrowing.
type Filter struct {
	AgentID string
	Sources []string
}

// Provider reads aggregate order statistics. Implementations compute the
// figures server side so large order sets never cross the wire.
type Provider interface {
	EarningByDay(ctx context.Context, start, end time.Time, filter Filter) ([]DayEarning, error)
	EarningByMonth(ctx context.Context, start, end time.Time, filter Filter) ([]MonthEarning, error)
	OrdersByDay(ctx context.Context, start, end time.Time, filter Filter) ([]DayCount, error)
	OrdersByMonth(ctx context.Context, start, end time.Time, filter Filter) ([]MonthCount, error)
}

// Balance is a running earnings summary over a set of day buckets.
type Balance struct {
	Total int64        `json:"total"`
	Days  []DayEarning `json:"days"`
}

// Refresh recomputes the total from the day buckets.
func (b *Balance) Refresh() {
	var total int64
	for _, day := range b.Days {
		total += day.Value
	}
	b.Total = total
}
