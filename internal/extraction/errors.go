package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned for blank inbound text
	ErrEmptyMessage = errors.New("empty message")

	// ErrMalformedOutput is returned when the model reply is not a JSON object
	ErrMalformedOutput = errors.New("model output is not valid JSON")

	// ErrMissingFields is returned when required keys are absent from the model reply
	ErrMissingFields = errors.New("model output is missing required fields")
)

// Error is the typed failure of an extraction attempt.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
