package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a memoized record stays fresh
const DefaultTTL = 5 * time.Minute

// Identified is a record keyed by id
type Identified interface {
	RecordID() string
}

type ttlEntry[T any] struct {
	value  T
	stored time.Time
}

// TTL memoizes records by id for a fixed window. Expiry is checked on
// read; nothing runs in the background. Writes are last-write-wins.
type TTL[T Identified] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]ttlEntry[T]
}

// TTLOption configures a TTL cache
type TTLOption func(*ttlOptions)

type ttlOptions struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL overrides the freshness window
func WithTTL(d time.Duration) TTLOption {
	return func(o *ttlOptions) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) TTLOption {
	return func(o *ttlOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTL creates an empty memo
func NewTTL[T Identified](opts ...TTLOption) *TTL[T] {
	o := ttlOptions{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[T]{
		ttl:     o.ttl,
		now:     o.now,
		entries: make(map[string]ttlEntry[T]),
	}
}

// Get returns the record for id if it is still fresh. A stale entry is
// evicted and reported as a miss.
func (c *TTL[T]) Get(id string) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.stored) >= c.ttl {
		delete(c.entries, id)
		return zero, false
	}
	return e.value, true
}

// Set stores rec with a fresh timestamp. Records without an id are ignored.
func (c *TTL[T]) Set(rec T) {
	id := rec.RecordID()
	if id == "" {
		return
	}
	c.mu.Lock()
	c.entries[id] = ttlEntry[T]{value: rec, stored: c.now()}
	c.mu.Unlock()
}

// Invalidate evicts id
func (c *TTL[T]) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Clear evicts everything
func (c *TTL[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]ttlEntry[T])
	c.mu.Unlock()
}

// Len reports the number of stored entries, fresh or not
func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
