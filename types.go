package xcast

import (
	"time"
)

// EventType enumerates bus lifecycle events for observers.
type EventType string

const (
	Published    EventType = "publish"
	Rejected     EventType = "reject"
	Delivered    EventType = "deliver"
	HandlerError EventType = "handler_error"
	Subscribed   EventType = "subscribe"
	Unsubscribed EventType = "unsubscribe"
	Dropped      EventType = "drop"
	Replayed     EventType = "replay"
)

// Event carries telemetry for observers.
type Event struct {
	Type      EventType
	Key       string
	Pattern   string
	MessageID string
	// Matched is the number of subscriptions a publish was delivered to.
	Matched  int
	Duration time.Duration
	Err      error
}

// PoolStats reports the queue of an AsyncObserver.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Metrics defines observable telemetry for the bus.
type Metrics struct {
	Published           uint64
	Rejected            uint64
	Unmatched           uint64
	Delivered           uint64
	HandlerErrors       uint64
	Panics              uint64
	Dropped             uint64
	Replayed            uint64
	ActiveSubscriptions int
	Retained            int
	AvgDeliveryTimeMs   float64
}

// HealthStatus indicates bus health.
type HealthStatus struct {
	Status    string // "healthy", "degraded"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
