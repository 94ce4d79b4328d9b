package quotation

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the partner reply cannot be decoded
// into a valid quotation.
var ErrMalformedResponse = errors.New("malformed partner response")

// Error is returned for every failed partner call. StatusCode is zero when no
// HTTP response was received.
type Error struct {
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("quotation: %s: %s (status=%d)", e.Op, e.Detail, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("quotation: %s: http status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("quotation: %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
