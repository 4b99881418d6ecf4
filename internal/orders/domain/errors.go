package domain

import "errors"

// Invariant violations raised by order mutations. Each aborts the whole
// operation before any persistence happens.
var (
	ErrNoAgent                = errors.New("no agent assigned for delivery")
	ErrNoBooks                = errors.New("order has no book allocation")
	ErrMissingDeliveryCost    = errors.New("delivery cost must be positive")
	ErrAmountExceeded         = errors.New("paid amount does not cover computed cost")
	ErrOrderImmutable         = errors.New("order already delivered")
	ErrTransitionNotSupported = errors.New("reverse transition not supported")
)
