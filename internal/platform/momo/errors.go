package momo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the network has no record for the requested
// reference id or account holder.
var ErrNotFound = errors.New("momo: not found")

// AuthError means the credential exchange did not yield a usable token.
// Fatal to any subsequent call until a retry succeeds.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("momo auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("momo auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError carries the upstream non-2xx status and body so callers can
// pass the status through where sensible.
type NetworkError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("momo %s: upstream status %d: %s", e.Op, e.StatusCode, e.Body)
}
