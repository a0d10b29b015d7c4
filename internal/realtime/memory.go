package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

// MemoryBroker delivers changes in-process. Each subscription owns a
// queue and a goroutine, so delivery is in publish order per subscription.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySub
	nextID uint64
	closed bool
	logger *zap.Logger
}

type memorySub struct {
	id     uint64
	filter Filter
	queue  *changeQueue
	broker *MemoryBroker
	once   sync.Once
}

// NewMemoryBroker creates an empty broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[uint64]*memorySub),
		logger: logging.GetLogger().With(zap.String("component", "realtime-memory")),
	}
}

// Publish enqueues ch on every matching subscription
func (b *MemoryBroker) Publish(ctx context.Context, ch Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	telemetry.RecordRealtimeEvent(ctx, ch.Table, string(ch.Type))
	for _, s := range b.subs {
		if s.filter.Matches(ch) {
			s.queue.Enqueue(ch)
		}
	}
	return nil
}

// Subscribe registers h for changes matching f
func (b *MemoryBroker) Subscribe(f Filter, h Handler) (Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}
	b.nextID++
	s := &memorySub{
		id:     b.nextID,
		filter: f,
		queue:  newChangeQueue(),
		broker: b,
	}
	b.subs[s.id] = s
	go deliver(s.queue, h)

	b.logger.Debug("Subscribed", zap.Stringer("filter", f), zap.Uint64("sub", s.id))
	return s, nil
}

// ActiveSubscriptions returns the number of live subscriptions
func (b *MemoryBroker) ActiveSubscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close cancels every subscription
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*memorySub)
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.queue.Close()
	}
	return nil
}

// deliver drains q into h until q is closed
func deliver(q *changeQueue, h Handler) {
	for {
		for {
			ch, ok := q.TryDequeue()
			if !ok {
				break
			}
			h(ch)
		}
		if _, open := <-q.Wait(); !open {
			return
		}
	}
}

func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		s.queue.Close()
	})
}
