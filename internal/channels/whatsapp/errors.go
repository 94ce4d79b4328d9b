package whatsapp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned when X-Hub-Signature-256 does not match the body
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrUnexpectedObject is returned for webhooks that are not WhatsApp business events
	ErrUnexpectedObject = errors.New("unexpected webhook object")
)

// Error is a failed outbound send. StatusCode is zero when the request never
// got a response.
type Error struct {
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("whatsapp: send failed: %v", e.Err)
	case e.Code != 0:
		return fmt.Sprintf("whatsapp: API error %d: %s (status=%d)", e.Code, e.Message, e.StatusCode)
	default:
		return fmt.Sprintf("whatsapp: unexpected status %d: %s", e.StatusCode, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// TransportError marks an inbound webhook request that could not be accepted.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("whatsapp: webhook %s: %v", e.Reason, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
