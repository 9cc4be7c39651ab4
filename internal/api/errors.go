// Package api is the HTTP client for the external course/score API.
package api

import "errors"

// Sentinel errors for the two transport-level failure classes. Callers
// show one message per operation and never retry automatically.
var (
	// ErrFetch marks network failures and non-2xx responses without a
	// usable error body.
	ErrFetch = errors.New("fetch failed")
	// ErrDecode marks responses whose body could not be parsed.
	ErrDecode = errors.New("decode failed")
)

// ValidationError carries a server-reported semantic rejection, e.g. a
// duplicate course name. The message is surfaced to the user verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
