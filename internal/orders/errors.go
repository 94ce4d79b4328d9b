package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidOrder is returned when an order is missing its thread key or has a bad status
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidStatus is returned by SetStatus for unknown statuses
	ErrInvalidStatus = errors.New("invalid order status")
)

// StoreError wraps any persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("orders: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
