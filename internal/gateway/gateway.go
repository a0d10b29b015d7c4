// Package gateway wraps the backend's atomic procedures for the sync
// client: local precondition checks, per-control loading flags, and the
// server's message passed through unchanged on failure.
package gateway

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// Procedures invokes a named backend procedure. params is encoded as
// JSON and the result decoded into out, which may be nil.
type Procedures interface {
	Call(ctx context.Context, name string, params, out interface{}) error
}

// ErrInFlight is returned when the same control already has a call running
var ErrInFlight = apperr.FailedPrecondition("This action is already in progress")

// Option configures a Gateway
type Option func(*Gateway)

// WithBalance lets the gateway reject spends the locally known balance
// cannot cover. ok is false while the wallet has not loaded.
func WithBalance(balance func() (amount int64, ok bool)) Option {
	return func(g *Gateway) {
		g.balance = balance
	}
}

// Gateway is safe for concurrent use
type Gateway struct {
	procs   Procedures
	balance func() (int64, bool)
	logger  *zap.Logger

	mu      sync.Mutex
	busy    map[string]struct{}
	watches []func(key string, busy bool)
}

// New creates a gateway over procs
func New(procs Procedures, opts ...Option) *Gateway {
	g := &Gateway{
		procs:  procs,
		logger: logging.WithComponent("gateway"),
		busy:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key names the control a call belongs to, such as the accept button
// of one application
func Key(name string, ids ...string) string {
	if len(ids) == 0 {
		return name
	}
	return name + ":" + strings.Join(ids, ":")
}

// Busy reports whether a call for key is in flight
func (g *Gateway) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[key]
	return ok
}

// InFlight returns the number of calls in flight
func (g *Gateway) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.busy)
}

// OnBusy registers fn to be told when a key starts and stops loading
func (g *Gateway) OnBusy(fn func(key string, busy bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watches = append(g.watches, fn)
}

func (g *Gateway) setBusy(key string, busy bool) bool {
	g.mu.Lock()
	if busy {
		if _, ok := g.busy[key]; ok {
			g.mu.Unlock()
			return false
		}
		g.busy[key] = struct{}{}
	} else {
		delete(g.busy, key)
	}
	watches := append([]func(string, bool){}, g.watches...)
	g.mu.Unlock()

	for _, fn := range watches {
		fn(key, busy)
	}
	return true
}

// call runs one procedure under key's loading flag. The flag is cleared
// whatever the outcome.
func (g *Gateway) call(ctx context.Context, key, name string, params, out interface{}) error {
	if !g.setBusy(key, true) {
		return ErrInFlight
	}
	defer g.setBusy(key, false)

	if err := g.procs.Call(ctx, name, params, out); err != nil {
		g.logger.Debug("Procedure failed",
			zap.String("procedure", name),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err))
		return err
	}
	return nil
}

func (g *Gateway) requireAmount(field string, amount int64) error {
	if amount <= 0 {
		return apperr.InvalidField(field, "Enter an amount greater than zero")
	}
	return nil
}

// requireFunds checks amount against the locally known balance
func (g *Gateway) requireFunds(field string, amount int64) error {
	if err := g.requireAmount(field, amount); err != nil {
		return err
	}
	if g.balance == nil {
		return nil
	}
	if have, ok := g.balance(); ok && have < amount {
		return apperr.InvalidField(field, "Insufficient balance")
	}
	return nil
}
