package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type rec struct {
	ID   string
	Name string
}

func (r rec) RecordID() string { return r.ID }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTLGetAfterSet(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[rec](WithClock(clock.Now))

	in := rec{ID: "u1", Name: "Ada"}
	c.Set(in)

	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, in, got)

	clock.Advance(DefaultTTL - time.Second)
	_, ok = c.Get("u1")
	assert.True(t, ok, "still fresh just before the window closes")

	clock.Advance(time.Second)
	_, ok = c.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
}

func TestTTLSetRefreshesTimestamp(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTL[rec](WithClock(clock.Now), WithTTL(time.Minute))

	c.Set(rec{ID: "u1", Name: "old"})
	clock.Advance(50 * time.Second)
	c.Set(rec{ID: "u1", Name: "new"})
	clock.Advance(50 * time.Second)

	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, "new", got.Name)
}

func TestTTLIgnoresRecordsWithoutID(t *testing.T) {
	c := NewTTL[rec]()
	c.Set(rec{Name: "anonymous"})
	assert.Equal(t, 0, c.Len())
}

func TestTTLInvalidate(t *testing.T) {
	c := NewTTL[rec]()
	c.Set(rec{ID: "u1"})
	c.Set(rec{ID: "u2"})

	c.Invalidate("u1")
	_, ok := c.Get("u1")
	assert.False(t, ok)
	_, ok = c.Get("u2")
	assert.True(t, ok)

	c.Invalidate("missing")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
