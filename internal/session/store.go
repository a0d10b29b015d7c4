// Package session holds who is signed in and what they own: profile,
// wallet, subscription and the followed set. It re-derives everything
// on auth transitions and keeps it current through realtime changes.
package session

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/optimistic"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/pkg/logging"
)

// ErrMutationInFlight is returned when a toggle on the same target is
// still waiting for the server
var ErrMutationInFlight = apperr.FailedPrecondition("Please wait for the previous change to finish")

// Auth is the client-side session holder
type Auth interface {
	Current() *auth.Session
	Changes() (<-chan auth.Event, func())
}

// Backend reads the signed-in user's records. Missing records are (nil, nil).
type Backend interface {
	Profile(ctx context.Context, id string) (*models.Profile, error)
	Wallet(ctx context.Context, userID string) (*models.Wallet, error)
	Subscription(ctx context.Context, userID string) (*models.Subscription, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// Follower toggles a follow on the server
type Follower interface {
	ToggleFollow(ctx context.Context, targetID string) (*procedures.FollowToggleResult, error)
}

// State is a consistent copy of the store
type State struct {
	Ready        bool
	User         *auth.User
	Profile      *models.Profile
	Wallet       *models.Wallet
	Subscription *models.Subscription
	Following    []string
	Pending      []string
	Err          string
}

// Option configures a Store
type Option func(*Store)

// WithProfileCache shares a profile cache with other components
func WithProfileCache(c *cache.TTL[models.Profile]) Option {
	return func(s *Store) { s.profiles = c }
}

// WithSubscriber enables per-user realtime updates
func WithSubscriber(sub realtime.Subscriber) Option {
	return func(s *Store) { s.subscriber = sub }
}

// WithOnChange registers a callback run after every state change
func WithOnChange(fn func(State)) Option {
	return func(s *Store) { s.onChange = fn }
}

// Store is safe for concurrent use
type Store struct {
	auth       Auth
	backend    Backend
	follower   Follower
	profiles   *cache.TTL[models.Profile]
	subscriber realtime.Subscriber
	onChange   func(State)
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	ready    bool
	user     *auth.User
	profile  *models.Profile
	wallet   *models.Wallet
	sub      *models.Subscription
	follows  map[string]optimistic.Value[bool]
	mutating map[string]struct{}
	err      string
	bridge   *realtime.Bridge
	closed   bool
}

// New creates a store. Nothing is loaded until Init.
func New(a Auth, backend Backend, follower Follower, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		auth:     a,
		backend:  backend,
		follower: follower,
		logger:   logging.WithComponent("session"),
		ctx:      ctx,
		cancel:   cancel,
		follows:  make(map[string]optimistic.Value[bool]),
		mutating: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.profiles == nil {
		s.profiles = cache.NewTTL[models.Profile]()
	}
	return s
}

// Profiles returns the profile cache the store fills
func (s *Store) Profiles() *cache.TTL[models.Profile] {
	return s.profiles
}

// Init loads the current session's profile, wallet, subscription and
// followed set in parallel. The store is marked ready only once all of
// them have resolved.
func (s *Store) Init(ctx context.Context) error {
	current := s.auth.Current()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	prev := s.user
	s.ready = false
	s.err = ""
	s.mutating = make(map[string]struct{})
	old := s.bridge
	s.bridge = nil
	if current == nil || prev == nil || prev.ID != current.User.ID {
		// nothing of another user's may be shown or spent against
		s.profile, s.wallet, s.sub = nil, nil, nil
		s.follows = make(map[string]optimistic.Value[bool])
	}
	if current == nil {
		s.user = nil
		s.ready = true
	} else {
		u := current.User
		s.user = &u
	}
	s.unlockAndNotify()

	if old != nil {
		old.Close()
	}
	if prev != nil {
		s.profiles.Invalidate(prev.ID)
	}
	if current == nil {
		return nil
	}

	userID := current.User.ID
	s.profiles.Invalidate(userID)

	var (
		profile   *models.Profile
		wallet    *models.Wallet
		sub       *models.Subscription
		following []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = s.loadProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		wallet, err = s.backend.Wallet(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		sub, err = s.backend.Subscription(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		following, err = s.backend.FollowingIDs(gctx, userID)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.ready = true
	if err != nil {
		s.err = apperr.Message(err)
		s.logger.Warn("Session load failed", zap.String("user_id", userID), zap.Error(err))
		s.unlockAndNotify()
		return err
	}
	s.profile, s.wallet, s.sub = profile, wallet, sub
	s.follows = make(map[string]optimistic.Value[bool], len(following))
	for _, id := range following {
		s.follows[id] = optimistic.New(true)
	}
	s.unlockAndNotify()

	s.openBridge(gen, userID)
	return nil
}

func (s *Store) loadProfile(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := s.profiles.Get(id); ok {
		return &p, nil
	}
	p, err := s.backend.Profile(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	s.profiles.Set(*p)
	return p, nil
}

// Watch re-derives the store on every auth transition until Close.
// The first Init is the caller's.
func (s *Store) Watch() {
	events, cancel := s.auth.Changes()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.logger.Debug("Auth transition", zap.String("type", string(ev.Type)))
				if err := s.Init(s.ctx); err != nil {
					s.logger.Debug("Reload after auth transition failed", zap.Error(err))
				}
			}
		}
	}()
}

// Ready reports whether the last Init has resolved
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// UserID returns the signed-in user id or ""
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Profile returns the signed-in user's profile
func (s *Store) Profile() *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Balance returns the locally known wallet balance. ok is false until
// the wallet has loaded.
func (s *Store) Balance() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallet == nil {
		return 0, false
	}
	return s.wallet.Balance, true
}

// IsFollowing reports whether the signed-in user follows id, including
// a toggle that is still waiting for the server
func (s *Store) IsFollowing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.follows[id]
	return ok && v.Current()
}

// ToggleFollow flips the follow immediately and asks the server to do
// the same. On failure the flip is undone and the error returned.
func (s *Store) ToggleFollow(ctx context.Context, targetID string) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return apperr.Unauthorized("Sign in to continue")
	}
	if _, busy := s.mutating[targetID]; busy {
		s.mu.Unlock()
		return ErrMutationInFlight
	}
	gen := s.gen
	v, ok := s.follows[targetID]
	if !ok {
		v = optimistic.New(false)
	}
	s.follows[targetID] = optimistic.Reduce(v, optimistic.ApplyAction(!v.Current()))
	s.mutating[targetID] = struct{}{}
	s.unlockAndNotify()

	res, err := s.follower.ToggleFollow(ctx, targetID)

	s.mu.Lock()
	if gen != s.gen {
		// signed out or switched user meanwhile; the reload owns the state
		s.mu.Unlock()
		return err
	}
	delete(s.mutating, targetID)
	v = s.follows[targetID]
	if err != nil {
		v = optimistic.Reduce(v, optimistic.FailAction[bool](err))
		s.err = apperr.Message(err)
	} else {
		v = optimistic.Reduce(v, optimistic.ConfirmAction(res.Following))
		s.err = ""
	}
	if !ok && !v.Current() {
		delete(s.follows, targetID)
	} else {
		s.follows[targetID] = v
	}
	s.unlockAndNotify()

	if err == nil {
		s.profiles.Invalidate(targetID)
	}
	return err
}

// Snapshot returns a consistent copy of the store
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{Ready: s.ready, Err: s.err}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	if s.profile != nil {
		p := *s.profile
		st.Profile = &p
	}
	if s.wallet != nil {
		w := *s.wallet
		st.Wallet = &w
	}
	if s.sub != nil {
		sub := *s.sub
		st.Subscription = &sub
	}
	for id, v := range s.follows {
		if v.Current() {
			st.Following = append(st.Following, id)
		}
	}
	for id := range s.mutating {
		st.Pending = append(st.Pending, id)
	}
	sort.Strings(st.Following)
	sort.Strings(st.Pending)
	return st
}

func (s *Store) unlockAndNotify() {
	st := s.stateLocked()
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(st)
	}
}

// Bridge returns the per-user realtime bridge, if open
func (s *Store) Bridge() *realtime.Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}

// Close stops watching auth and releases the realtime bridge
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	b := s.bridge
	s.bridge = nil
	s.mu.Unlock()

	s.cancel()
	if b != nil {
		b.Close()
	}
	s.wg.Wait()
}
