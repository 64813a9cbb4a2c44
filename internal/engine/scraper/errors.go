package scraper

import (
	"errors"
	"fmt"
)

// ErrMissingPayload means a page carried no parseable embedded data.
// Pages failing this way are dropped, never re-fetched.
var ErrMissingPayload = errors.New("embedded data payload missing or malformed")

// ErrNotFound marks a 404 from the source. Detail lookups translate it
// into an empty result instead of a run failure.
var ErrNotFound = errors.New("target not found")

// RateLimitError indicates the source is rate limiting or blocking us.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// StatusError is any other unexpected HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// StopCause says why a run terminated early.
type StopCause string

const (
	CauseFetchExhausted StopCause = "fetch_exhausted"
	CauseCancelled      StopCause = "cancelled"
)

// RunError is returned alongside a partial ResultSet when a run stops
// before covering everything it was asked to. The gathered records are
// preserved, never discarded.
type RunError struct {
	Cause StopCause
	Err   error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return string(e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Cause, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
