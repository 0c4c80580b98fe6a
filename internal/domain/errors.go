package domain

import "errors"

// Domain errors represent error conditions in the mirage domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	// The returned error wraps this sentinel and names the offending field.
	ErrInvalidConfig = errors.New("mirage: invalid configuration")

	// ErrAlreadyRunning is returned when Start() is called on an endpoint
	// that is not in the Idle state.
	ErrAlreadyRunning = errors.New("mirage: already running")

	// ErrNotRunning is returned when Send() or Stop() preconditions require
	// a running endpoint and it is not running.
	ErrNotRunning = errors.New("mirage: not running")

	// ErrConnectTimeout is returned when the sync transport is not reachable
	// within the configured connect timeout.
	ErrConnectTimeout = errors.New("mirage: sync transport connect timeout")

	// ErrInvalidPayload is returned when an outbound payload is empty.
	ErrInvalidPayload = errors.New("mirage: invalid payload")

	// ErrWouldBlock reports a transient transport backpressure condition.
	// It never escapes the async worker: a would-block send requeues the
	// message and retries on the next loop iteration.
	ErrWouldBlock = errors.New("mirage: transport would block")

	// ErrTransportClosed reports that the async socket has been closed
	// underneath the worker. The worker treats it as fatal.
	ErrTransportClosed = errors.New("mirage: transport closed")
)
