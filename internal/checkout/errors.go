package checkout

import (
	"errors"
	"fmt"
)

// State is a step of the checkout state machine
type State string

const (
	StateValidating   State = "Validating"
	StateOrdering     State = "Ordering"
	StateInvoicing    State = "Invoicing"
	StateClearingCart State = "ClearingCart"
	StateDone         State = "Done"
	StateFailed       State = "Failed"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInvalidBillingDetails = errors.New("invalid billing details")
)

// ValidationError means the request was rejected before anything was written
type ValidationError struct {
	Err    error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout rejected: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError means a store failed before the order was written,
// so nothing durable happened
type PersistenceError struct {
	State State
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkout failed while %s: %v", e.State, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PartialCheckoutError means the order exists but a later step failed.
// InvoiceID is empty when the invoice was not written.
type PartialCheckoutError struct {
	State     State
	OrderID   string
	InvoiceID string
	Err       error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("checkout of order %s incomplete while %s: %v", e.OrderID, e.State, e.Err)
}

func (e *PartialCheckoutError) Unwrap() error { return e.Err }
