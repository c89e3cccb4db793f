package control

import (
	"errors"
	"net/http"
)

// Sentinel errors for the three ways a control request can be refused,
// plus the transport-level read failure.
var (
	// ErrPayloadTooLarge is returned when the declared body length does not
	// fit the ingest buffer. The body is never read.
	ErrPayloadTooLarge = errors.New("control: payload too large")

	// ErrReceive is returned when the body could not be read in full.
	ErrReceive = errors.New("control: receive failed")

	// ErrMalformed is returned when the body is not a JSON document.
	ErrMalformed = errors.New("control: malformed json")

	// ErrInvalidFields is returned when any of x1, y1, x2, y2 is missing or
	// not a number.
	ErrInvalidFields = errors.New("control: invalid fields")
)

// Ack is the body sent back for an accepted control record.
const Ack = "JSON Received and Parsed"

// StatusCode maps an ingest error to the HTTP status the device answers with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestHeaderFieldsTooLarge
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrInvalidFields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Outcome returns a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPayloadTooLarge):
		return "too_large"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInvalidFields):
		return "invalid_fields"
	default:
		return "receive_error"
	}
}
