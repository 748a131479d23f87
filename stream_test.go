package xcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *Envelope[any]) *Envelope[any] {
	t.Helper()
	select {
	case env, ok := <-ch:
		require.True(t, ok, "stream closed")
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func waitClosed(t *testing.T, ch <-chan *Envelope[any]) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed")
		}
	}
}

func TestStream_Receives(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, nil)

	ch, sub := bus.Stream(ctx, "orders:*", 4)
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, "orders:created", 1))
	require.NoError(t, bus.Publish(ctx, "users:created", 2))
	require.NoError(t, bus.Publish(ctx, "orders:paid", 3))

	assert.Equal(t, "orders:created", receive(t, ch).Key())
	assert.Equal(t, "orders:paid", receive(t, ch).Key())
}

func TestStream_UnreadBacklogKeptInOrder(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, nil)

	ch, sub := bus.Stream(ctx, "room:*", 0)
	defer sub.Close()
	assert.Equal(t, DefaultStreamBuffer, cap(ch))

	const total = DefaultStreamBuffer + 36
	for i := 0; i < total; i++ {
		require.NoError(t, bus.Publish(ctx, "room:1", i))
	}

	for i := 0; i < total; i++ {
		assert.Equal(t, i, receive(t, ch).Data())
	}
	assert.Zero(t, bus.GetMetrics().Dropped)
}

func TestStream_PublisherNeverBlocks(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, nil)

	_, sub := bus.Stream(ctx, "x", 1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			_ = bus.Publish(ctx, "x", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on an unread stream")
	}
}

func TestStream_ClosedOnClose(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, nil)

	ch, sub := bus.Stream(ctx, "x", 0)
	require.NoError(t, bus.Publish(ctx, "x", "first"))
	assert.Equal(t, "first", receive(t, ch).Data())

	require.NoError(t, sub.Close())
	waitClosed(t, ch)

	assert.NotPanics(t, func() { require.NoError(t, bus.Publish(ctx, "x", nil)) })
}

func TestStream_ClosedOnContextCancel(t *testing.T) {
	bus := newTestBus(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := bus.Stream(ctx, "x", 1)
	cancel()
	waitClosed(t, ch)
}

func TestStreamDropping_DropsWhenFull(t *testing.T) {
	ctx := context.Background()
	events := &eventLog{}
	bus := newTestBus(t, func(b *BusBuilder) { b.WithObserver(events) })

	ch, sub := bus.StreamDropping(ctx, "x", 2)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, "x", i))
	}

	assert.Len(t, ch, 2)
	assert.Equal(t, 0, (<-ch).Data())
	assert.Equal(t, 1, (<-ch).Data())
	assert.Equal(t, uint64(3), bus.GetMetrics().Dropped)
	assert.Len(t, events.ofType(Dropped), 3)
}

func TestStreamDropping_ClosedOnClose(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, nil)

	ch, sub := bus.StreamDropping(ctx, "x", 0)
	assert.Equal(t, DefaultStreamBuffer, cap(ch))

	require.NoError(t, bus.Publish(ctx, "x", "buffered"))
	require.NoError(t, sub.Close())

	// buffered envelopes are still readable after close
	env, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "buffered", env.Data())
	_, ok = <-ch
	assert.False(t, ok)
}
