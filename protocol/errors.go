package protocol

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrCredential = errors.New("credential rejected")
	ErrNoData     = errors.New("no data found")
	ErrRateLimit  = errors.New("rate limited")
	ErrConnection = errors.New("connection failed")
	ErrProtocol   = errors.New("unexpected protocol response")
)

// DefaultRetryAfter is used when a throttled response carries no usable
// Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// ValidationError is returned when a caller-supplied parameter or request is
// rejected.
type ValidationError struct {
	Field    string
	Value    string
	Expected string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: expected %s", e.Field, e.Value, e.Expected)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// CredentialError is returned for expired, invalid or unsupported credentials.
type CredentialError struct {
	Reason string
}

func (e *CredentialError) Error() string { return "credential error: " + e.Reason }

func (e *CredentialError) Is(target error) bool { return target == ErrCredential }

// NoDataError is returned when a well-formed request found nothing.
type NoDataError struct {
	Endpoint Endpoint
	Reason   string
}

func (e *NoDataError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no data found for %s", e.Endpoint)
	}
	return fmt.Sprintf("no data found for %s: %s", e.Endpoint, e.Reason)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }

// RateLimitError is returned when the server throttled the request.
type RateLimitError struct {
	Endpoint   Endpoint
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s; retry after %s", e.Endpoint, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimit }

// ConnectionError covers transport failures, timeouts and server errors.
type ConnectionError struct {
	Endpoint Endpoint
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error calling %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is any other unexpected response. Body holds the raw
// response body.
type ProtocolError struct {
	Endpoint   Endpoint
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %d - %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
