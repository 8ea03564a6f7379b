package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNotFound indicates the backend has no memory of the job handle.
var ErrNotFound = errors.New("job not found")

// Error wraps a backend call failure with operation context.
type Error struct {
	// Op is the operation that failed (submit, status, logs, kill).
	Op string

	// Handle is the job handle involved, empty for submit.
	Handle JobHandle

	// Transient marks the failure as retryable (timeout, network,
	// 5xx/429 from the orchestrator) as opposed to a hard rejection.
	Transient bool

	Err error
}

func (e *Error) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("backend %s %s: %v", e.Op, e.Handle, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPError represents a non-2xx orchestrator response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsRetryable returns true for server-side and rate-limit responses.
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsTransient reports whether err is a transient backend failure: the caller
// should retry (bounded) and, once retries exhaust, record UNKNOWN rather
// than a terminal state.
func IsTransient(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Transient
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.IsRetryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Cancellation leaves the true state uncertain: the request may already
	// have reached the orchestrator. UNKNOWN, never terminal.
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// IsNotFound reports whether err means the backend no longer knows the handle.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// wrap builds an *Error classifying the underlying failure.
func wrap(op string, handle JobHandle, err error) *Error {
	return &Error{Op: op, Handle: handle, Transient: IsTransient(err), Err: err}
}
