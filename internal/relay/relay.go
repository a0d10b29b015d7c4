// Package relay forwards row changes written by database triggers to the
// realtime broker, reconnecting to the database whenever the listen
// connection drops.
package relay

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

// maxBackoff caps the reconnect delay
const maxBackoff = time.Minute

// Listener blocks delivering changes to pub until ctx ends or its
// connection fails
type Listener interface {
	Listen(ctx context.Context, pub realtime.Publisher) error
}

// Relay manages the listen-and-republish loop
type Relay struct {
	listener Listener
	pub      realtime.Publisher
	retry    time.Duration
	logger   *zap.Logger

	relayed  atomic.Int64
	restarts atomic.Int64
}

// New creates a relay from listener into pub
func New(cfg *config.RealtimeConfig, listener Listener, pub realtime.Publisher) *Relay {
	retry := cfg.RelayRetry
	if retry <= 0 {
		retry = 3 * time.Second
	}
	return &Relay{
		listener: listener,
		pub:      pub,
		retry:    retry,
		logger:   logging.GetLogger().With(zap.String("component", "relay")),
	}
}

// Relayed returns the number of changes forwarded so far
func (r *Relay) Relayed() int64 {
	return r.relayed.Load()
}

// Restarts returns how many times the listener was reconnected
func (r *Relay) Restarts() int64 {
	return r.restarts.Load()
}

// Run relays until ctx is cancelled. Listener failures are logged and
// retried with exponential backoff; the delay resets once a connection
// has forwarded at least one change.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("Starting change relay")

	delay := r.retry
	for {
		before := r.relayed.Load()
		err := r.listener.Listen(ctx, publisherFunc(r.forward))
		if ctx.Err() != nil {
			r.logger.Info("Change relay stopped", zap.Int64("relayed", r.relayed.Load()))
			return ctx.Err()
		}
		if r.relayed.Load() > before {
			delay = r.retry
		}

		r.logger.Error("Change listener failed, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", delay))
		r.restarts.Add(1)
		if !r.wait(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

func (r *Relay) forward(ctx context.Context, ch realtime.Change) error {
	if err := r.pub.Publish(ctx, ch); err != nil {
		return err
	}
	r.relayed.Add(1)
	telemetry.RecordRealtimeEvent(ctx, ch.Table, string(ch.Type))
	r.logger.Debug("Relayed change",
		zap.String("table", ch.Table),
		zap.String("type", string(ch.Type)))
	return nil
}

// wait waits for d or until ctx is cancelled; false means cancelled
func (r *Relay) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type publisherFunc func(ctx context.Context, ch realtime.Change) error

func (f publisherFunc) Publish(ctx context.Context, ch realtime.Change) error {
	return f(ctx, ch)
}
