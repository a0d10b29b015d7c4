// Package views composes the sync client into page-level views. Views
// get their collaborators from an explicitly constructed Context and
// release every realtime bridge they opened when closed.
package views

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/gateway"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/session"
	"github.com/vibecampus/vibehub/pkg/config"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// ErrContextClosed is returned when mounting a view on a closed Context
var ErrContextClosed = apperr.FailedPrecondition("The app is shutting down")

// Config lists a Context's collaborators
type Config struct {
	Session  *session.Store
	Realtime realtime.Subscriber
	Sources  Sources
	Gateway  *gateway.Gateway
	Feed     config.FeedConfig
}

// Context carries the collaborators shared by every view of one signed-in
// app instance. Create one at startup, pass it to view constructors, and
// Close it on shutdown.
type Context struct {
	session  *session.Store
	realtime realtime.Subscriber
	sources  Sources
	gateway  *gateway.Gateway
	feed     config.FeedConfig
	logger   *zap.Logger

	mu      sync.Mutex
	mounted map[mountable]struct{}
	closed  bool
}

type mountable interface {
	Close()
	bridges() []*realtime.Bridge
}

// NewContext creates a Context
func NewContext(cfg Config) *Context {
	return &Context{
		session:  cfg.Session,
		realtime: cfg.Realtime,
		sources:  cfg.Sources,
		gateway:  cfg.Gateway,
		feed:     cfg.Feed,
		logger:   logging.WithComponent("views"),
		mounted:  make(map[mountable]struct{}),
	}
}

// Session returns the session store
func (c *Context) Session() *session.Store {
	return c.session
}

// Gateway returns the action gateway
func (c *Context) Gateway() *gateway.Gateway {
	return c.gateway
}

func (c *Context) userID() string {
	if c.session == nil {
		return ""
	}
	return c.session.UserID()
}

func (c *Context) profile() *models.Profile {
	if c.session == nil {
		return nil
	}
	return c.session.Profile()
}

func (c *Context) register(v mountable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.mounted[v] = struct{}{}
	return nil
}

func (c *Context) unregister(v mountable) {
	c.mu.Lock()
	delete(c.mounted, v)
	c.mu.Unlock()
}

// Mounted returns the number of views currently mounted
func (c *Context) Mounted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mounted)
}

// ActiveBridges counts the open realtime bridges held by mounted views
func (c *Context) ActiveBridges() int {
	c.mu.Lock()
	views := make([]mountable, 0, len(c.mounted))
	for v := range c.mounted {
		views = append(views, v)
	}
	c.mu.Unlock()

	n := 0
	for _, v := range views {
		for _, b := range v.bridges() {
			if b != nil && !b.Closed() {
				n++
			}
		}
	}
	return n
}

// Close unmounts every view and closes the session
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	views := make([]mountable, 0, len(c.mounted))
	for v := range c.mounted {
		views = append(views, v)
	}
	c.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	if c.session != nil {
		c.session.Close()
	}
	c.logger.Debug("Views closed", zap.Int("views", len(views)))
}
