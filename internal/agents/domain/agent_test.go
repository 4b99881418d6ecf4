package domain_test

import (
	"errors"
	"testing"

	"github.com/bookworks/backoffice/internal/agents/domain"
)

func TestDebitBooks(t *testing.T) {
	t.Run("debits subject by subject", func(t *testing.T) {
		agent := domain.Agent{Books: domain.Books{"Mathematics": 5, "English": 3}}

		remaining, err := agent.DebitBooks(map[string]int{"Mathematics": 2, "English": 1})
		if err != nil {
			t.Fatalf("DebitBooks() failed: %v", err)
		}
		if remaining["Mathematics"] != 3 || remaining["English"] != 2 {
			t.Errorf("remaining = %v, want Mathematics:3 English:2", remaining)
		}
	})

	t.Run("fails when a subject is short", func(t *testing.T) {
		agent := domain.Agent{Books: domain.Books{"Mathematics": 1}}

		_, err := agent.DebitBooks(map[string]int{"Mathematics": 2})
		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("DebitBooks() error = %v, want InsufficientStockError", err)
		}
		if stockErr.Subject != "Mathematics" || stockErr.Held != 1 || stockErr.Requested != 2 {
			t.Errorf("stock error = %+v, want Mathematics held 1 requested 2", stockErr)
		}
	})

	t.Run("fails when a subject is missing entirely", func(t *testing.T) {
		agent := domain.Agent{Books: domain.Books{"Mathematics": 5}}

		_, err := agent.DebitBooks(map[string]int{"Chemistry": 1})
		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("DebitBooks() error = %v, want InsufficientStockError", err)
		}
		if stockErr.Subject != "Chemistry" || stockErr.Held != 0 {
			t.Errorf("stock error = %+v, want Chemistry held 0", stockErr)
		}
	})

	t.Run("receiver is never mutated", func(t *testing.T) {
		agent := domain.Agent{Books: domain.Books{"Mathematics": 5}}

		if _, err := agent.DebitBooks(map[string]int{"Mathematics": 2}); err != nil {
			t.Fatalf("DebitBooks() failed: %v", err)
		}
		if agent.Books["Mathematics"] != 5 {
			t.Errorf("agent books mutated: %v", agent.Books)
		}

		_, _ = agent.DebitBooks(map[string]int{"Mathematics": 99})
		if agent.Books["Mathematics"] != 5 {
			t.Errorf("agent books mutated by failed debit: %v", agent.Books)
		}
	})
}
