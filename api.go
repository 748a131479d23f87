package xcast

import (
	"context"
)

// Handler processes a single envelope. A returned error is recorded and
// reported to observers; it never reaches the publisher.
type Handler func(ctx context.Context, env *Envelope[any]) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Subscription is a live, filtered view of the bus owned by its caller.
type Subscription interface {
	// Pattern returns the pattern the subscription was created with.
	Pattern() string
	// Delivered returns how many envelopes reached the handler.
	Delivered() uint64
	// Done is closed once the subscription has ended.
	Done() <-chan struct{}
	// Close ends the subscription. It is idempotent and affects no other subscription.
	Close() error
}

// Observer receives bus lifecycle events. Implementations must not block.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API represents the complete xcast surface.
type API interface {
	Publish(ctx context.Context, key string, data any) error
	Retain(ctx context.Context, key string, data any) error
	Forget(key string)
	Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error)
	Stream(ctx context.Context, pattern string, buffer int) (<-chan *Envelope[any], Subscription)
	StreamDropping(ctx context.Context, pattern string, buffer int) (<-chan *Envelope[any], Subscription)
	GetMetrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}
