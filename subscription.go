package xcast

import (
	"context"
	"sync"
	"sync/atomic"
)

var _ Subscription = (*subscription)(nil)

type subscription struct {
	id      uint64
	bus     *Bus
	pattern pattern
	handler Handler
	// from is the last sequence number published before registration.
	from uint64

	delivered atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	onClose   func()

	stopMu sync.Mutex
	stop   func() bool
}

func (s *subscription) Pattern() string { return s.pattern.raw }

func (s *subscription) Delivered() uint64 { return s.delivered.Load() }

func (s *subscription) Done() <-chan struct{} { return s.done }

// Close removes the subscription from the bus. A publish already iterating
// over it skips it from the next envelope on.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.stopMu.Lock()
		if s.stop != nil {
			s.stop()
		}
		s.stopMu.Unlock()

		s.bus.detach(s)
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
		s.bus.notify(Event{Type: Unsubscribed, Pattern: s.pattern.raw})
	})
	return nil
}

// watch closes the subscription once ctx is done.
func (s *subscription) watch(ctx context.Context) {
	if ctx == nil || ctx.Done() == nil {
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })

	s.stopMu.Lock()
	s.stop = stop
	s.stopMu.Unlock()

	// closed during replay, before stop was stored
	if s.closed.Load() {
		stop()
	}
}

// deliver runs the handler for env. It returns false when the subscription
// was closed before delivery.
func (s *subscription) deliver(ctx context.Context, env *Envelope[any]) bool {
	if s.closed.Load() {
		return false
	}
	b := s.bus
	hctx := injectPattern(ctx, s.pattern.raw)

	start := b.clock.Now()
	err := b.invoke(hctx, s.handler, env)
	d := b.clock.Since(start)

	s.delivered.Add(1)
	b.metrics.delivered.Add(1)
	b.recordDeliveryTime(d.Nanoseconds())

	if err != nil {
		b.handlerFailed(s, env, err, d)
		return true
	}
	b.notify(Event{
		Type:      Delivered,
		Key:       env.key,
		Pattern:   s.pattern.raw,
		MessageID: env.id,
		Duration:  d,
	})
	return true
}
