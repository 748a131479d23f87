package xcast

import (
	"fmt"
	"time"
)

// Envelope is the immutable record delivered to subscribers.
//
// One Envelope is built per publish and the same instance is handed to every
// matching subscriber. Data is shared by reference, never copied: if it is a
// pointer, map or slice, a subscriber that mutates it is seen by all others.
// Treat it as read-only unless subscribers coordinate on purpose.
type Envelope[T any] struct {
	id        string
	key       string
	data      T
	hasData   bool
	timestamp int64
	seq       uint64
}

// ID is the envelope's UUID-v4 shaped identifier.
func (e *Envelope[T]) ID() string { return e.id }

// Key is the exact key supplied by the publisher, never the subscriber's pattern.
func (e *Envelope[T]) Key() string { return e.key }

// Data returns the payload, or the zero value of T when none was published.
func (e *Envelope[T]) Data() T { return e.data }

// HasData reports whether a payload was published.
func (e *Envelope[T]) HasData() bool { return e.hasData }

// Timestamp is the wall-clock construction time in Unix milliseconds.
// It is informational only; delivery order follows publish order.
func (e *Envelope[T]) Timestamp() int64 { return e.timestamp }

// Time returns Timestamp as a time.Time.
func (e *Envelope[T]) Time() time.Time { return time.UnixMilli(e.timestamp) }

// Seq is the bus-local publish sequence number.
func (e *Envelope[T]) Seq() uint64 { return e.seq }

func (e *Envelope[T]) String() string {
	return fmt.Sprintf("Envelope{id=%s key=%s seq=%d ts=%d}", e.id, e.key, e.seq, e.timestamp)
}

// As returns a typed view of env. The view shares id, key, timestamp and the
// data reference. ok is false only when a payload is present and is not a T.
func As[T any](env *Envelope[any]) (*Envelope[T], bool) {
	out := &Envelope[T]{
		id:        env.id,
		key:       env.key,
		hasData:   env.hasData,
		timestamp: env.timestamp,
		seq:       env.seq,
	}
	if !env.hasData {
		return out, true
	}
	v, ok := env.data.(T)
	if !ok {
		return nil, false
	}
	out.data = v
	return out, true
}

func newEnvelope(id, key string, data any, ts time.Time) *Envelope[any] {
	return &Envelope[any]{
		id:        id,
		key:       key,
		data:      data,
		hasData:   data != nil,
		timestamp: ts.UnixMilli(),
	}
}
