package xcast

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig controls retry behavior for handler middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
}

// RetryMiddleware re-runs a failing handler immediately, up to MaxAttempts.
// There is no backoff: delivery runs on the publisher's goroutine and the
// publisher must not be put to sleep.
func RetryMiddleware(cfg RetryConfig) Middleware {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	shouldRetry := cfg.RetryIf
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Envelope[any]) error {
			var lastErr error
			for i := 1; i <= attempts; i++ {
				lastErr = next(ctx, env)
				if lastErr == nil {
					return nil
				}
				if ctx.Err() != nil {
					return lastErr
				}
				if !shouldRetry(lastErr) {
					return lastErr
				}
			}
			return lastErr
		}
	}
}

// DeadlineMiddleware gives the handler a context that expires after d. The
// handler still runs to completion on the publisher's goroutine; if it
// returns after the deadline without an error of its own,
// context.DeadlineExceeded is reported instead. Cancellation of the
// publisher's own ctx is not a handler failure. The deadline runs on wall
// time (context.WithTimeout), not on the bus clock.
func DeadlineMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next Handler) Handler { return next }
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Envelope[any]) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			if err := next(tctx, env); err != nil {
				return err
			}
			if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
				return tctx.Err()
			}
			return nil
		}
	}
}

// RecoveryMiddleware converts handler panics into errors wrapping ErrHandlerPanic.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Envelope[any]) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx, env)
		}
	}
}

// Chain composes middlewares around a handler in order.
func Chain(h Handler, mws ...Middleware) Handler {
	if len(mws) == 0 {
		return h
	}
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
