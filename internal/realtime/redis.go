package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/logging"
)

// RedisBroker fans changes out across processes through a Redis
// pub/sub channel. One receive goroutine feeds a local MemoryBroker
// that owns the per-subscription queues.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *MemoryBroker
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBroker creates a broker on channel. Call Start before use.
func NewRedisBroker(client *redis.Client, channel string) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: channel,
		local:   NewMemoryBroker(),
		logger:  logging.GetLogger().With(zap.String("component", "realtime-redis"), zap.String("channel", channel)),
	}
}

// Start subscribes to the Redis channel and begins local delivery
func (b *RedisBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.pubsub = pubsub
	b.done = make(chan struct{})
	go b.receive(pubsub.Channel(), b.done)

	b.logger.Info("Redis realtime broker started")
	return nil
}

func (b *RedisBroker) receive(msgs <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range msgs {
		var ch Change
		if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
			b.logger.Warn("Dropping malformed change", zap.Error(err))
			continue
		}
		_ = b.local.Publish(context.Background(), ch)
	}
}

// Publish sends ch to every process subscribed to the channel
func (b *RedisBroker) Publish(ctx context.Context, ch Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Subscribe registers h with the local fan-out
func (b *RedisBroker) Subscribe(f Filter, h Handler) (Subscription, error) {
	return b.local.Subscribe(f, h)
}

// ActiveSubscriptions returns the number of live local subscriptions
func (b *RedisBroker) ActiveSubscriptions() int {
	return b.local.ActiveSubscriptions()
}

// Close stops receiving and cancels local subscriptions
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	pubsub, done := b.pubsub, b.done
	b.pubsub = nil
	b.mu.Unlock()

	var err error
	if pubsub != nil {
		err = pubsub.Close()
		<-done
	}
	_ = b.local.Close()
	return err
}
