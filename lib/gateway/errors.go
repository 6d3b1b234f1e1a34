package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes the UI is expected to branch
// on. Messages are user-facing.
var (
	// no valid session, checked before any network call is issued
	ErrAuthRequired = errors.New("You must be logged in to perform this action.")
	// the server rejected the token with a 401; session state has
	// already been cleared by the time this is returned
	ErrAuthExpired = errors.New("Your session has expired, please log in again.")
	// 403 from the server
	ErrPermissionDenied = errors.New("You do not have permission to perform this action.")
)

// ValidationError reports required fields that were missing or empty,
// caught before network dispatch.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ServerError is any non-2xx response other than 401/403. Message
// carries the server-provided error text when the body could be
// parsed, otherwise a generic fallback.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// NetworkError wraps transport-level failures (DNS, connection
// refused, timeouts). No classification is attempted beyond this.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}
