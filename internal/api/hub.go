package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size accepted from the peer
	maxFrameSize = 16 * 1024

	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub serves realtime subscriptions over websocket. Each connection may
// hold many subscriptions, each identified by a client-chosen ref.
type Hub struct {
	source    realtime.Subscriber
	authorize Authorizer
	logger    *zap.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	hub    *Hub
	conn   *websocket.Conn
	caller string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]realtime.Subscription
}

// Authorizer decides whether caller may watch f. A non-nil visible func
// further hides individual changes from the caller.
type Authorizer func(caller string, f realtime.Filter) (visible func(realtime.Change) bool, err error)

// NewHub creates a hub fed by source
func NewHub(source realtime.Subscriber, authorize Authorizer) *Hub {
	return &Hub{
		source:    source,
		authorize: authorize,
		logger:    logging.GetLogger().With(zap.String("component", "realtime-hub")),
		clients:   make(map[*hubClient]struct{}),
	}
}

// Serve upgrades the request and runs the connection until it closes
func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{
		hub:    h,
		conn:   conn,
		caller: Caller(c),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logging.WithUser(h.logger, Caller(c)),
		subs:   make(map[string]realtime.Subscription),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	client.readPump()
}

// Connections returns the number of open websocket connections
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Subscriptions returns the number of live subscriptions across all connections
func (h *Hub) Subscriptions() int {
	h.mu.Lock()
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	n := 0
	for _, c := range clients {
		c.mu.Lock()
		n += len(c.subs)
		c.mu.Unlock()
	}
	return n
}

func (c *hubClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Unexpected websocket close", zap.Error(err))
			}
			return
		}

		var f realtime.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.reply(realtime.Frame{Op: realtime.OpError, Message: "Malformed frame"})
			continue
		}
		switch f.Op {
		case realtime.OpSubscribe:
			c.subscribe(f)
		case realtime.OpUnsubscribe:
			c.unsubscribe(f.Ref)
		default:
			c.reply(realtime.Frame{Op: realtime.OpError, Ref: f.Ref, Message: "Unknown op"})
		}
	}
}

func (c *hubClient) subscribe(f realtime.Frame) {
	if f.Ref == "" || f.Filter == nil {
		c.reply(realtime.Frame{Op: realtime.OpError, Ref: f.Ref, Message: "ref and filter are required"})
		return
	}
	filter := *f.Filter
	if err := filter.Validate(); err != nil {
		c.reply(realtime.Frame{Op: realtime.OpError, Ref: f.Ref, Message: err.Error()})
		return
	}
	visible, err := c.hub.authorize(c.caller, filter)
	if err != nil {
		c.reply(realtime.Frame{Op: realtime.OpError, Ref: f.Ref, Message: apperr.Message(err)})
		return
	}

	ref := f.Ref
	sub, err := c.hub.source.Subscribe(filter, func(ch realtime.Change) {
		if visible != nil && !visible(ch) {
			return
		}
		c.reply(realtime.Frame{Op: realtime.OpChange, Ref: ref, Change: &ch})
	})
	if err != nil {
		c.logger.Error("Subscribe failed", zap.String("filter", filter.String()), zap.Error(err))
		c.reply(realtime.Frame{Op: realtime.OpError, Ref: ref, Message: "Subscription failed"})
		return
	}

	c.mu.Lock()
	old := c.subs[ref]
	c.subs[ref] = sub
	c.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
	c.logger.Debug("Subscribed", zap.String("ref", ref), zap.String("filter", filter.String()))
	c.reply(realtime.Frame{Op: realtime.OpSubscribed, Ref: ref})
}

func (c *hubClient) unsubscribe(ref string) {
	c.mu.Lock()
	sub := c.subs[ref]
	delete(c.subs, ref)
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// reply queues a frame for the write pump. A client that cannot keep
// up is disconnected.
func (c *hubClient) reply(f realtime.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Error("Failed to encode frame", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("Realtime client too slow, disconnecting")
		go c.close()
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)

		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[string]realtime.Subscription)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}

		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()
		_ = c.conn.Close()
	})
}

// privateTables hold rows only their owner may watch
var privateTables = map[string]bool{
	"wallets":             true,
	"wallet_transactions": true,
	"subscriptions":       true,
	"notifications":       true,
	"payments":            true,
}

// authorizeFilter restricts realtime filters the same way reads are
// restricted. Private rows are visible to their owner only, task
// conversations to the task's participants and college rooms to members.
func (r *Router) authorizeFilter(caller string, f realtime.Filter) (func(realtime.Change) bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case f.Table == "accounts":
		return nil, apperr.Forbidden("This table is not available in realtime")
	case privateTables[f.Table]:
		if caller == "" {
			return nil, apperr.Unauthorized("Sign in to continue")
		}
		if f.Column != "user_id" || f.Value != caller {
			return nil, apperr.Forbidden("You can only watch your own " + f.Table)
		}
	case f.Table == "collab_messages" || f.Table == "collab_deliverables":
		if f.Column != "post_id" {
			return nil, apperr.InvalidField("column", "Filter by post_id")
		}
		return nil, r.requireParticipant(ctx, caller, f.Value)
	case f.Table == "college_messages":
		if f.Column != "college" {
			return nil, apperr.InvalidField("column", "Filter by college")
		}
		if err := r.requireRoom(ctx, caller, f.Value, models.RoomCommon, false); err != nil {
			return nil, err
		}
		faculty := r.requireRoom(ctx, caller, f.Value, models.RoomFaculty, false) == nil
		return func(ch realtime.Change) bool {
			room, _ := ch.Column("room")
			return room != models.RoomFaculty || faculty
		}, nil
	}
	return nil, nil
}
