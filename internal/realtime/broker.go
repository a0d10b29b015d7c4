package realtime

import (
	"context"
)

// Handler receives one change
type Handler func(Change)

// Subscription is a live registration that can be cancelled
type Subscription interface {
	Unsubscribe()
}

// Publisher announces committed changes
type Publisher interface {
	Publish(ctx context.Context, ch Change) error
}

// Subscriber registers handlers for filtered changes
type Subscriber interface {
	Subscribe(f Filter, h Handler) (Subscription, error)
}

// Broker both publishes and delivers changes
type Broker interface {
	Publisher
	Subscriber
}

// NopPublisher drops every change. Used when row triggers feed the broker.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Change) error { return nil }
