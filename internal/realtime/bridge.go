package realtime

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/logging"
)

// Bridge scopes a set of subscriptions to one owner (a feed, a chat
// thread, a single record). Close releases all of them at once.
//
// Handlers registered on one bridge are never run concurrently with
// each other, and once Close returns no handler runs again. A handler
// must not call Close on its own bridge.
type Bridge struct {
	scope  string
	source Subscriber
	logger *zap.Logger

	mu   sync.Mutex // guards subs and closed
	subs []Subscription

	dispatch sync.Mutex // held while a handler runs
	closed   atomic.Bool

	onClose func()
}

// Open starts a bridge for scope. No subscription is made until On.
func Open(source Subscriber, scope string) *Bridge {
	return &Bridge{
		scope:  scope,
		source: source,
		logger: logging.GetLogger().With(zap.String("component", "realtime-bridge"), zap.String("scope", scope)),
	}
}

// Scope returns the scope name the bridge was opened with
func (b *Bridge) Scope() string {
	return b.scope
}

// On subscribes h to changes matching f for the life of the bridge
func (b *Bridge) On(f Filter, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		return ErrBridgeClosed
	}

	sub, err := b.source.Subscribe(f, func(ch Change) {
		b.dispatch.Lock()
		defer b.dispatch.Unlock()
		if b.closed.Load() {
			return
		}
		h(ch)
	})
	if err != nil {
		b.logger.Error("Failed to subscribe", zap.Stringer("filter", f), zap.Error(err))
		return err
	}
	b.subs = append(b.subs, sub)
	return nil
}

// OnInsert, OnUpdate and OnDelete narrow f to one event kind
func (b *Bridge) OnInsert(f Filter, h Handler) error {
	f.Event = EventInsert
	return b.On(f, h)
}

func (b *Bridge) OnUpdate(f Filter, h Handler) error {
	f.Event = EventUpdate
	return b.On(f, h)
}

func (b *Bridge) OnDelete(f Filter, h Handler) error {
	f.Event = EventDelete
	return b.On(f, h)
}

// Subscriptions returns the number of live subscriptions on the bridge
func (b *Bridge) Subscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Closed reports whether Close has been called
func (b *Bridge) Closed() bool {
	return b.closed.Load()
}

// Close unsubscribes everything. It waits for a running handler to
// return; afterwards no handler on this bridge will run.
func (b *Bridge) Close() {
	b.dispatch.Lock()
	already := b.closed.Swap(true)
	b.dispatch.Unlock()
	if already {
		return
	}

	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	onClose := b.onClose
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if onClose != nil {
		onClose()
	}
	b.logger.Debug("Bridge closed", zap.Int("subscriptions", len(subs)))
}

// OnClose registers fn to run once after the bridge closes
func (b *Bridge) OnClose(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onClose = fn
}
