package xcast

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// retainStore keeps the latest retained envelope per key. No janitor
// goroutine is started: expired items are skipped on read and purged on write,
// so a bus never owns a background goroutine.
//
// Reads through ttlcache reorder its LRU list, so capacity is enforced here
// by sequence number instead: the oldest retained envelope is evicted first.
// ttlcache has no clock option; expiry follows wall time.
type retainStore struct {
	mu       sync.Mutex
	capacity int
	cache    *ttlcache.Cache[string, *Envelope[any]]
}

func newRetainStore(capacity int, ttl time.Duration) *retainStore {
	opts := []ttlcache.Option[string, *Envelope[any]]{
		ttlcache.WithDisableTouchOnHit[string, *Envelope[any]](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *Envelope[any]](ttl))
	}
	return &retainStore{
		capacity: capacity,
		cache:    ttlcache.New(opts...),
	}
}

func (r *retainStore) put(env *Envelope[any]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.DeleteExpired()
	if r.capacity > 0 && !r.cache.Has(env.key) {
		items := r.cache.Items()
		for len(items) >= r.capacity {
			oldest := ""
			var oldestSeq uint64
			for k, item := range items {
				if s := item.Value().seq; oldest == "" || s < oldestSeq {
					oldest, oldestSeq = k, s
				}
			}
			r.cache.Delete(oldest)
			delete(items, oldest)
		}
	}
	r.cache.Set(env.key, env, ttlcache.DefaultTTL)
}

func (r *retainStore) forget(key string) {
	r.mu.Lock()
	r.cache.Delete(key)
	r.mu.Unlock()
}

// current reports whether env is still the retained value for its key.
func (r *retainStore) current(env *Envelope[any]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.cache.Get(env.key)
	return item != nil && item.Value() == env
}

func (r *retainStore) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache.Items())
}

// matching returns retained envelopes whose key matches p, in publish order.
func (r *retainStore) matching(p pattern) []*Envelope[any] {
	r.mu.Lock()
	items := r.cache.Items()
	r.mu.Unlock()

	var out []*Envelope[any]
	for key, item := range items {
		if item.IsExpired() {
			continue
		}
		if p.matchSegments(strings.Split(key, Separator)) {
			out = append(out, item.Value())
		}
	}
	slices.SortFunc(out, func(a, b *Envelope[any]) int { return cmp.Compare(a.seq, b.seq) })
	return out
}
