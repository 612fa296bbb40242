package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("reservation already processed")
	ErrUnauthorized     = errors.New("actor is not an authorized operator")
)

// ValidationError marks malformed input: empty names, non-positive
// quantities, prices or stock values.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// InsufficientStockError carries both the free and the pending figure so the
// caller can explain why the available number looks lower than raw stock.
type InsufficientStockError struct {
	Product   string
	Available int
	Pending   int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, pending %d, requested %d",
		e.Product, e.Available, e.Pending, e.Requested)
}

// PersistenceError wraps a failed store read or write. It aborts the single
// operation that hit it and is never retried automatically.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
