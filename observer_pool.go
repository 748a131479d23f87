package xcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncObserver forwards events to a target Observer through a bounded queue
// drained by worker goroutines, so a slow observer never delays delivery.
// OnEvent never blocks: events are dropped when the queue is full or the
// observer is closed. The caller owns the workers and must Close it.
type AsyncObserver struct {
	target  Observer
	queue   chan Event
	workers int

	// mu orders sends against close(queue).
	mu     sync.RWMutex
	closed bool
	stop   func() bool
	wg     sync.WaitGroup

	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewAsyncObserver starts workers dispatching to target. workers defaults to
// 4 and bufferSize to 1000. The observer closes itself when ctx is done.
func NewAsyncObserver(ctx context.Context, target Observer, workers, bufferSize int) *AsyncObserver {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}

	a := &AsyncObserver{
		target:  target,
		queue:   make(chan Event, bufferSize),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		a.wg.Go(a.run)
	}
	if ctx != nil {
		a.stop = context.AfterFunc(ctx, a.shutdown)
	}
	return a
}

func (a *AsyncObserver) OnEvent(e Event) {
	if a.target == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- e:
	default:
		a.dropped.Add(1)
	}
}

// run drains the queue until it is closed. Target panics are recovered so
// the worker survives.
func (a *AsyncObserver) run() {
	for e := range a.queue {
		func() {
			defer func() { _ = recover() }()
			a.target.OnEvent(e)
		}()
		a.processed.Add(1)
	}
}

// shutdown stops accepting events; workers exit once the queue is empty.
func (a *AsyncObserver) shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	close(a.queue)
}

// Close stops accepting events and waits up to timeout for queued ones to be
// dispatched.
func (a *AsyncObserver) Close(timeout time.Duration) error {
	if a.stop != nil {
		a.stop()
	}
	a.shutdown()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverShutdownTimeout
	}
}

// Stats returns queue statistics.
func (a *AsyncObserver) Stats() PoolStats {
	return PoolStats{
		Dropped:      a.dropped.Load(),
		Processed:    a.processed.Load(),
		ActiveEvents: len(a.queue),
		Workers:      a.workers,
		BufferSize:   cap(a.queue),
	}
}
