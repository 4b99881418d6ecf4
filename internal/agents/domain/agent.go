package domain

import "fmt"

// Books maps a subject name to the number of copies an agent holds.
type Books map[string]int

// Agent is a field agent carrying physical book inventory.
type Agent struct {
	ID       string `json:"id"`
	Fullname string `json:"fullname"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	State    string `json:"state"`
	Books    Books  `json:"books,omitempty"`
}

// InsufficientStockError reports the subject whose debit would go negative.
type InsufficientStockError struct {
	Subject   string
	Held      int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s exceeded allocated value: held %d, requested %d", e.Subject, e.Held, e.Requested)
}

// DebitBooks returns the stock remaining after removing the allocation,
// checked subject by subject. The receiver is never mutated, so a failed
// debit leaves the agent's inventory untouched.
func (a *Agent) DebitBooks(alloc map[string]int) (Books, error) {
	remaining := make(Books, len(a.Books))
	for subject, held := range a.Books {
		remaining[subject] = held
	}
	for subject, requested := range alloc {
		held := remaining[subject]
		if held < requested {
			return nil, &InsufficientStockError{Subject: subject, Held: held, Requested: requested}
		}
		remaining[subject] = held - requested
	}
	return remaining, nil
}
