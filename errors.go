package xcast

import "errors"

var (
	// ErrInvalidKey is returned by Publish when the key is empty after trimming whitespace.
	ErrInvalidKey = errors.New("xcast: key must not be empty")
	// ErrNilHandler is returned by Subscribe when no handler is supplied.
	ErrNilHandler = errors.New("xcast: handler must not be nil")
	// ErrHandlerPanic wraps a panic recovered from a subscriber handler.
	ErrHandlerPanic = errors.New("xcast: handler panic")
	// ErrInvalidRetention is returned by Build for a negative retention capacity or ttl.
	ErrInvalidRetention = errors.New("xcast: retention capacity and ttl must not be negative")
	// ErrObserverShutdownTimeout is returned when AsyncObserver workers do not drain in time.
	ErrObserverShutdownTimeout = errors.New("xcast: async observer shutdown timeout")
)
