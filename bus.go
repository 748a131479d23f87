package xcast

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

var _ API = (*Bus)(nil)
var _ HealthChecker = (*Bus)(nil)

// Bus fans published envelopes out to every live subscription whose pattern
// matches the envelope key.
//
// Delivery is synchronous: Publish returns after every matching handler has
// run on the caller's goroutine. Handlers may publish or subscribe
// reentrantly. Publish is safe for concurrent use; envelopes from one
// goroutine reach each subscription in publish order, envelopes from
// different goroutines are not ordered relative to each other.
type Bus struct {
	clock       xclock.Clock
	logger      *xlog.Logger
	middlewares []Middleware
	ids         IDGenerator
	retained    *retainStore

	seq   atomic.Uint64
	subID atomic.Uint64

	// subs is copy-on-write; writers hold subsMu, Publish only loads.
	subsMu sync.Mutex
	subs   atomic.Pointer[[]*subscription]

	observersMu sync.RWMutex
	observers   []Observer

	metrics *busMetrics
}

type busMetrics struct {
	published     atomic.Uint64
	rejected      atomic.Uint64
	unmatched     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
	panics        atomic.Uint64
	dropped       atomic.Uint64
	replayed      atomic.Uint64
	deliveryNs    atomic.Int64
}

// Publish builds one Envelope for key and data and delivers it to every
// matching subscription before returning. A nil data publishes no payload.
//
// The only error is ErrInvalidKey, for a key that is empty after trimming
// whitespace; nothing is constructed or delivered in that case. Handler
// failures are isolated and never returned here.
func (b *Bus) Publish(ctx context.Context, key string, data any) error {
	return b.publish(ctx, key, data, false)
}

// Retain publishes like Publish and also keeps the envelope as the latest
// value for key. Subscriptions created later replay it. Without retention
// configured on the builder it is equivalent to Publish.
func (b *Bus) Retain(ctx context.Context, key string, data any) error {
	return b.publish(ctx, key, data, true)
}

// Forget drops the retained envelope for key, if any.
func (b *Bus) Forget(key string) {
	if b.retained != nil {
		b.retained.forget(key)
	}
}

func (b *Bus) publish(ctx context.Context, key string, data any, retain bool) error {
	if strings.TrimSpace(key) == "" {
		b.metrics.rejected.Add(1)
		b.notify(Event{Type: Rejected, Key: key, Err: ErrInvalidKey})
		return fmt.Errorf("%w: got %q", ErrInvalidKey, key)
	}

	start := b.clock.Now()
	env := newEnvelope(b.ids(), key, data, start)
	b.metrics.published.Add(1)

	// Sequencing, retaining and taking the snapshot happen as one step so
	// that a concurrent Subscribe sees this envelope either live or in the
	// retained replay, never both and never neither.
	b.subsMu.Lock()
	env.seq = b.seq.Add(1)
	if retain && b.retained != nil {
		b.retained.put(env)
	}
	subs := b.snapshot()
	b.subsMu.Unlock()

	hctx := b.handlerContext(ctx)
	keySegs := strings.Split(key, Separator)
	matched := 0
	for _, s := range subs {
		if !s.pattern.matchSegments(keySegs) {
			continue
		}
		if s.deliver(hctx, env) {
			matched++
		}
	}
	if matched == 0 {
		b.metrics.unmatched.Add(1)
	}

	b.notify(Event{
		Type:      Published,
		Key:       key,
		MessageID: env.id,
		Matched:   matched,
		Duration:  b.clock.Since(start),
	})
	return nil
}

// Subscribe registers handler for every envelope published from now on whose
// key matches pattern. The pattern is not validated: one that can never
// match simply never fires. The subscription ends on Close or when ctx is done.
//
// With retention enabled, retained envelopes matching pattern are delivered
// to handler, oldest first, before Subscribe returns.
func (b *Bus) Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	return b.subscribe(ctx, pattern, handler, nil), nil
}

func (b *Bus) subscribe(ctx context.Context, raw string, handler Handler, onClose func()) *subscription {
	s := &subscription{
		id:      b.subID.Add(1),
		bus:     b,
		pattern: compilePattern(raw),
		handler: Chain(RecoveryMiddleware()(handler), b.middlewares...),
		done:    make(chan struct{}),
		onClose: onClose,
	}

	b.subsMu.Lock()
	s.from = b.seq.Load()
	cur := b.snapshot()
	next := make([]*subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	b.subs.Store(&next)
	b.subsMu.Unlock()

	b.notify(Event{Type: Subscribed, Pattern: raw})

	if b.retained != nil {
		b.replay(ctx, s)
	}

	s.watch(ctx)
	return s
}

func (b *Bus) replay(ctx context.Context, s *subscription) {
	hctx := b.handlerContext(ctx)
	for _, env := range b.retained.matching(s.pattern) {
		if env.seq > s.from {
			// delivered live already
			continue
		}
		if !b.retained.current(env) {
			// superseded or forgotten while replaying
			continue
		}
		if !s.deliver(hctx, env) {
			return
		}
		b.metrics.replayed.Add(1)
		b.notify(Event{Type: Replayed, Key: env.key, Pattern: s.pattern.raw, MessageID: env.id})
	}
}

func (b *Bus) detach(s *subscription) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	cur := b.snapshot()
	next := make([]*subscription, 0, len(cur))
	for _, o := range cur {
		if o != s {
			next = append(next, o)
		}
	}
	b.subs.Store(&next)
}

func (b *Bus) snapshot() []*subscription {
	if p := b.subs.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *Bus) handlerContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = injectLogger(ctx, b.logger)
	ctx = injectClock(ctx, b.clock)
	return ctx
}

// invoke runs the composed handler. RecoveryMiddleware sits innermost, so a
// panic raised by a user middleware is caught here.
func (b *Bus) invoke(ctx context.Context, h Handler, env *Envelope[any]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, env)
}

func (b *Bus) handlerFailed(s *subscription, env *Envelope[any], err error, d time.Duration) {
	b.metrics.handlerErrors.Add(1)
	if errors.Is(err, ErrHandlerPanic) {
		b.metrics.panics.Add(1)
		b.logger.Warn().Err(err).Msg("xcast: handler panic (recovered)")
	}
	b.notify(Event{
		Type:      HandlerError,
		Key:       env.key,
		Pattern:   s.pattern.raw,
		MessageID: env.id,
		Duration:  d,
		Err:       err,
	})
}

// GetMetrics returns current bus metrics.
func (b *Bus) GetMetrics() Metrics {
	retained := 0
	if b.retained != nil {
		retained = b.retained.len()
	}
	return Metrics{
		Published:           b.metrics.published.Load(),
		Rejected:            b.metrics.rejected.Load(),
		Unmatched:           b.metrics.unmatched.Load(),
		Delivered:           b.metrics.delivered.Load(),
		HandlerErrors:       b.metrics.handlerErrors.Load(),
		Panics:              b.metrics.panics.Load(),
		Dropped:             b.metrics.dropped.Load(),
		Replayed:            b.metrics.replayed.Load(),
		ActiveSubscriptions: len(b.snapshot()),
		Retained:            retained,
		AvgDeliveryTimeMs:   float64(b.metrics.deliveryNs.Load()) / 1e6,
	}
}

// Health reports "degraded" once more than 5% of deliveries failed.
func (b *Bus) Health(_ context.Context) HealthStatus {
	metrics := b.GetMetrics()
	status := "healthy"
	msg := ""

	if metrics.HandlerErrors > 0 && metrics.Delivered > 0 {
		errorRate := float64(metrics.HandlerErrors) / float64(metrics.Delivered)
		if errorRate > 0.05 {
			status = "degraded"
			msg = fmt.Sprintf("handler error rate %.1f%%", errorRate*100)
		}
	}

	return HealthStatus{
		Status:    status,
		Metrics:   metrics,
		Timestamp: b.clock.Now(),
		Message:   msg,
	}
}

// AddObserver registers an observer (thread-safe).
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, obs)
	b.observersMu.Unlock()
}

// RemoveObserver removes an observer. Observers of a non-comparable type,
// such as ObserverFunc, cannot be removed.
func (b *Bus) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	defer b.observersMu.Unlock()

	// func-typed observers such as ObserverFunc are not comparable
	if !reflect.TypeOf(obs).Comparable() {
		return
	}
	for i, o := range b.observers {
		if reflect.TypeOf(o) == reflect.TypeOf(obs) && o == obs {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			break
		}
	}
}

// notify calls observers synchronously; an observer panic is swallowed.
func (b *Bus) notify(e Event) {
	b.observersMu.RLock()
	if len(b.observers) == 0 {
		b.observersMu.RUnlock()
		return
	}
	obs := make([]Observer, len(b.observers))
	copy(obs, b.observers)
	b.observersMu.RUnlock()

	for _, o := range obs {
		func() {
			defer func() { _ = recover() }()
			o.OnEvent(e)
		}()
	}
}

// recordDeliveryTime keeps an exponential moving average of handler time.
func (b *Bus) recordDeliveryTime(ns int64) {
	const alpha = 0.2 // 20% weight to new sample
	current := b.metrics.deliveryNs.Load()
	if current == 0 {
		b.metrics.deliveryNs.Store(ns)
		return
	}
	newAvg := int64(float64(ns)*alpha + float64(current)*(1-alpha))
	b.metrics.deliveryNs.Store(newAvg)
}

// Cast publishes a typed payload. It is Publish with the payload type fixed
// at the call site.
func Cast[T any](ctx context.Context, b *Bus, key string, data T) error {
	return b.Publish(ctx, key, data)
}

// On subscribes fn to envelopes whose payload is a T (or absent). Envelopes
// carrying another payload type are skipped.
func On[T any](ctx context.Context, b *Bus, pattern string, fn func(ctx context.Context, env *Envelope[T]) error) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(ctx, pattern, func(ctx context.Context, env *Envelope[any]) error {
		typed, ok := As[T](env)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
}
