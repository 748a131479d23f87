package xcast

import (
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// BusBuilder constructs Bus instances (Builder pattern).
type BusBuilder struct {
	middlewares []Middleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
	ids         IDGenerator

	retain         bool
	retainCapacity int
	retainTTL      time.Duration
}

// NewBusBuilder returns a new builder with sensible defaults.
func NewBusBuilder() *BusBuilder {
	return &BusBuilder{}
}

// WithMiddleware adds handler middlewares, applied to every subscription in order.
func (bb *BusBuilder) WithMiddleware(mw ...Middleware) *BusBuilder {
	if len(mw) == 0 {
		return bb
	}
	bb.middlewares = append(bb.middlewares, mw...)
	return bb
}

func (bb *BusBuilder) WithObserver(obs ...Observer) *BusBuilder {
	for _, o := range obs {
		if o != nil {
			bb.observers = append(bb.observers, o)
		}
	}
	return bb
}

func (bb *BusBuilder) WithLogger(l *xlog.Logger) *BusBuilder {
	bb.logger = l
	return bb
}

func (bb *BusBuilder) WithClock(c xclock.Clock) *BusBuilder {
	bb.clock = c
	return bb
}

// WithIDGenerator replaces WeakUUID as the envelope id source.
func (bb *BusBuilder) WithIDGenerator(g IDGenerator) *BusBuilder {
	bb.ids = g
	return bb
}

// WithRetention enables Retain. capacity bounds the number of retained keys
// (0 = unbounded, least recently retained evicted first); ttl expires them
// (0 = never). Negative values make Build fail with ErrInvalidRetention.
// Expiry runs on wall time, not on the clock set by WithClock.
func (bb *BusBuilder) WithRetention(capacity int, ttl time.Duration) *BusBuilder {
	bb.retain = true
	bb.retainCapacity = capacity
	bb.retainTTL = ttl
	return bb
}

func (bb *BusBuilder) Build() (*Bus, error) {
	if bb.retain && (bb.retainTTL < 0 || bb.retainCapacity < 0) {
		return nil, ErrInvalidRetention
	}

	clk := bb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := bb.logger
	if lg == nil {
		lg = xlog.Default()
	}
	ids := bb.ids
	if ids == nil {
		ids = WeakUUID
	}

	b := &Bus{
		clock:       clk,
		logger:      lg,
		middlewares: append([]Middleware(nil), bb.middlewares...),
		ids:         ids,
		metrics:     &busMetrics{},
	}
	if bb.retain {
		b.retained = newRetainStore(bb.retainCapacity, bb.retainTTL)
	}

	// Attach logging observer first unless one was supplied.
	hasLoggingObserver := false
	for _, o := range bb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		b.AddObserver(LoggingObserver{Logger: lg})
	}

	for _, o := range bb.observers {
		b.AddObserver(o)
	}

	return b, nil
}

// New constructs a Bus via the Builder. There is no process-wide default:
// callers own the returned instance and pass it where it is needed.
func New(init func(b *BusBuilder)) (*Bus, error) {
	b := NewBusBuilder()
	if init != nil {
		init(b)
	}
	return b.Build()
}
