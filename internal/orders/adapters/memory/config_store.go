package memory

import (
	"context"
	"sync"
	"time"
)

// ConfigStore keeps watermarks and the book cost in memory for tests and
// local development.
type ConfigStore struct {
	mu       sync.Mutex
	marks    map[string]time.Time
	bookCost int64
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{marks: make(map[string]time.Time), bookCost: 1200}
}

func (s *ConfigStore) Watermarks(_ context.Context) (map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.marks))
	for source, ts := range s.marks {
		out[source] = ts
	}
	return out, nil
}

func (s *ConfigStore) SaveWatermarks(_ context.Context, marks map[string]time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = make(map[string]time.Time, len(marks))
	for source, ts := range marks {
		s.marks[source] = ts
	}
	return nil
}

func (s *ConfigStore) BookCost(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookCost, nil
}

func (s *ConfigStore) SaveBookCost(_ context.Context, cost int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookCost = cost
	return nil
}
