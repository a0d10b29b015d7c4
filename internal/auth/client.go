package auth

import (
	"context"
	"sync"
)

// EventType is an auth state transition
type EventType string

const (
	SignedIn         EventType = "SIGNED_IN"
	SignedOut        EventType = "SIGNED_OUT"
	PasswordRecovery EventType = "PASSWORD_RECOVERY"
)

// Event reports a transition. Session is nil after sign-out.
type Event struct {
	Type    EventType
	Session *Session
}

// Client holds the signed-in session on the client side and announces
// transitions to subscribers in order
type Client struct {
	auth Authenticator

	mu      sync.Mutex
	session *Session
	subs    map[*subscriber]struct{}
}

// NewClient creates a signed-out client
func NewClient(a Authenticator) *Client {
	return &Client{auth: a, subs: make(map[*subscriber]struct{})}
}

// Current returns the active session or nil
func (c *Client) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// Token returns the active access token or ""
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// UserID returns the signed-in user id or ""
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.User.ID
}

// Restore resumes a stored token. An invalid token leaves the client
// signed out.
func (c *Client) Restore(ctx context.Context, token string) (*Session, error) {
	user, err := c.auth.CurrentUser(ctx, token)
	if err != nil {
		c.set(nil, SignedOut)
		return nil, err
	}
	s := &Session{AccessToken: token, User: *user}
	c.set(s, SignedIn)
	return s, nil
}

// SignUp creates an account and signs in
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*Session, error) {
	s, err := c.auth.SignUp(ctx, p)
	if err != nil {
		return nil, err
	}
	c.set(s, SignedIn)
	return s, nil
}

// SignIn signs in with email and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(s, SignedIn)
	return s, nil
}

// SignOut drops the session. The local session is cleared even when the
// backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}
	err := c.auth.SignOut(ctx, token)
	c.set(nil, SignedOut)
	return err
}

// RecoverPassword asks the backend to send a recovery link
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	return c.auth.RequestRecovery(ctx, email)
}

// CompleteRecovery exchanges a recovery token for a session and
// announces PasswordRecovery so the caller can prompt for a new password
func (c *Client) CompleteRecovery(ctx context.Context, recoveryToken string) (*Session, error) {
	s, err := c.auth.ExchangeRecovery(ctx, recoveryToken)
	if err != nil {
		return nil, err
	}
	c.set(s, PasswordRecovery)
	return s, nil
}

// UpdatePassword changes the signed-in user's password
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	return c.auth.UpdatePassword(ctx, c.Token(), password)
}

// Changes subscribes to auth transitions. Events arrive in order on the
// returned channel until cancel is called.
func (c *Client) Changes() (<-chan Event, func()) {
	sub := newSubscriber()
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, sub)
			c.mu.Unlock()
			sub.close()
		})
	}
	return sub.out, cancel
}

func (c *Client) set(s *Session, typ EventType) {
	c.mu.Lock()
	c.session = s
	ev := Event{Type: typ}
	if s != nil {
		cp := *s
		ev.Session = &cp
	}
	for sub := range c.subs {
		sub.push(ev)
	}
	c.mu.Unlock()
}

// subscriber buffers events without bound so publishers never block
type subscriber struct {
	mu      sync.Mutex
	pending []Event
	closed  bool
	signal  chan struct{}
	done    chan struct{}
	out     chan Event
}

func newSubscriber() *subscriber {
	s := &subscriber{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
	go s.pump()
	return s
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
