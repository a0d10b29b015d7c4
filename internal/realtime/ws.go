package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/pkg/logging"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// WSClient subscribes to a remote server's realtime endpoint
type WSClient struct {
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string]*wsSub
	nextID uint64
	err    error
	done   chan struct{}
}

type wsSub struct {
	ref    string
	queue  *changeQueue
	client *WSClient
	once   sync.Once
}

// DialWS connects to url (ws:// or wss://) authenticating with token
func DialWS(ctx context.Context, url, token string) (*WSClient, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &WSClient{
		conn:   conn,
		logger: logging.GetLogger().With(zap.String("component", "realtime-ws-client")),
		subs:   make(map[string]*wsSub),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe asks the server for changes matching f
func (c *WSClient) Subscribe(f Filter, h Handler) (Subscription, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	s := &wsSub{
		ref:    strconv.FormatUint(c.nextID, 10),
		queue:  newChangeQueue(),
		client: c,
	}
	c.subs[s.ref] = s
	c.mu.Unlock()

	if err := c.write(Frame{Op: OpSubscribe, Ref: s.ref, Filter: &f}); err != nil {
		s.drop()
		return nil, err
	}
	go deliver(s.queue, h)
	return s, nil
}

// ActiveSubscriptions returns the number of live subscriptions
func (c *WSClient) ActiveSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Err returns the error that ended the connection, if any
func (c *WSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and tears down the connection
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

func (c *WSClient) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(f)
}

func (c *WSClient) readLoop() {
	defer close(c.done)

	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsWriteWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Realtime connection lost", zap.Error(err))
			}
			c.fail(err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}
		switch f.Op {
		case OpChange:
			c.mu.Lock()
			s := c.subs[f.Ref]
			c.mu.Unlock()
			if s != nil && f.Change != nil {
				s.queue.Enqueue(*f.Change)
			}
		case OpError:
			c.logger.Warn("Subscription rejected", zap.String("ref", f.Ref), zap.String("message", f.Message))
			c.mu.Lock()
			s := c.subs[f.Ref]
			c.mu.Unlock()
			if s != nil {
				s.drop()
			}
		}
	}
}

func (c *WSClient) fail(err error) {
	c.mu.Lock()
	c.err = fmt.Errorf("realtime connection closed: %w", err)
	subs := c.subs
	c.subs = make(map[string]*wsSub)
	c.mu.Unlock()

	for _, s := range subs {
		s.queue.Close()
	}
}

func (s *wsSub) drop() {
	s.once.Do(func() {
		s.client.mu.Lock()
		delete(s.client.subs, s.ref)
		s.client.mu.Unlock()
		s.queue.Close()
	})
}

func (s *wsSub) Unsubscribe() {
	s.drop()
	if s.client.Err() == nil {
		_ = s.client.write(Frame{Op: OpUnsubscribe, Ref: s.ref})
	}
}
