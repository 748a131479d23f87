package xcast

import (
	"context"
	"sync"
)

// DefaultStreamBuffer is used by Stream and StreamDropping when buffer < 1.
const DefaultStreamBuffer = 64

// Stream subscribes to pattern and returns the matching envelopes as a
// channel, in publish order, with none lost. Publishers never wait on the
// reader: envelopes the channel cannot take yet are queued for the stream
// without bound and forwarded by a goroutine owned by the stream. The channel
// is closed once the subscription ends; envelopes still queued at that point
// are discarded.
func (b *Bus) Stream(ctx context.Context, pattern string, buffer int) (<-chan *Envelope[any], Subscription) {
	if buffer < 1 {
		buffer = DefaultStreamBuffer
	}
	ch := make(chan *Envelope[any], buffer)
	q := &streamQueue{wake: make(chan struct{}, 1)}

	sub := b.subscribe(ctx, pattern, func(_ context.Context, env *Envelope[any]) error {
		q.push(env)
		return nil
	}, nil)

	go q.pump(ch, sub.Done())
	return ch, sub
}

// StreamDropping is Stream with a bounded queue: when the channel buffer is
// full the envelope is dropped for this stream, counted in Metrics.Dropped
// and reported to observers. No goroutine is started.
func (b *Bus) StreamDropping(ctx context.Context, pattern string, buffer int) (<-chan *Envelope[any], Subscription) {
	if buffer < 1 {
		buffer = DefaultStreamBuffer
	}
	ch := make(chan *Envelope[any], buffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	handler := func(_ context.Context, env *Envelope[any]) error {
		mu.Lock()
		if closed {
			mu.Unlock()
			return nil
		}
		sent := true
		select {
		case ch <- env:
		default:
			sent = false
		}
		mu.Unlock()

		if !sent {
			b.metrics.dropped.Add(1)
			b.notify(Event{Type: Dropped, Key: env.key, Pattern: pattern, MessageID: env.id})
		}
		return nil
	}
	onClose := func() {
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}

	return ch, b.subscribe(ctx, pattern, handler, onClose)
}

// streamQueue is the unbounded FIFO between publishers and a stream's channel.
type streamQueue struct {
	mu    sync.Mutex
	items []*Envelope[any]
	// wake holds at most one pending signal.
	wake chan struct{}
}

func (q *streamQueue) push(env *Envelope[any]) {
	q.mu.Lock()
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *streamQueue) pop() (*Envelope[any], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	env := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return env, true
}

// pump forwards queued envelopes to ch until done is closed, then closes ch.
func (q *streamQueue) pump(ch chan<- *Envelope[any], done <-chan struct{}) {
	defer close(ch)
	for {
		env, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-done:
				return
			}
		}
		select {
		case ch <- env:
		case <-done:
			return
		}
	}
}
