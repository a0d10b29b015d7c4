package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
)

type fakeAuth struct {
	mu      sync.Mutex
	session *auth.Session
	events  chan auth.Event
}

func newFakeAuth(userID string) *fakeAuth {
	a := &fakeAuth{events: make(chan auth.Event, 4)}
	if userID != "" {
		a.session = &auth.Session{AccessToken: "token-" + userID, User: auth.User{ID: userID, Email: userID + "@campus.edu"}}
	}
	return a
}

func (a *fakeAuth) Current() *auth.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *fakeAuth) Changes() (<-chan auth.Event, func()) {
	return a.events, func() {}
}

func (a *fakeAuth) switchTo(userID string) {
	a.mu.Lock()
	a.session = &auth.Session{AccessToken: "token-" + userID, User: auth.User{ID: userID, Email: userID + "@campus.edu"}}
	a.mu.Unlock()
}

func (a *fakeAuth) signOut() {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	a.events <- auth.Event{Type: auth.SignedOut}
}

type fakeBackend struct {
	mu        sync.Mutex
	profiles  map[string]models.Profile
	wallets   map[string]models.Wallet
	following map[string][]string
	profileN  int
	walletErr error
	gate      chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profiles:  map[string]models.Profile{},
		wallets:   map[string]models.Wallet{},
		following: map[string][]string{},
	}
}

func (b *fakeBackend) Profile(ctx context.Context, id string) (*models.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileN++
	p, ok := b.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (b *fakeBackend) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	b.mu.Lock()
	gate, err := b.gate, b.walletErr
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.wallets[userID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (b *fakeBackend) Subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return nil, nil
}

func (b *fakeBackend) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.following[userID]...), nil
}

type fakeFollower struct {
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFollower) ToggleFollow(ctx context.Context, targetID string) (*procedures.FollowToggleResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &procedures.FollowToggleResult{Following: true, Followers: 1}, nil
}

func seededBackend() *fakeBackend {
	b := newFakeBackend()
	b.profiles["ana"] = models.Profile{ID: "ana", Name: "Ana"}
	b.wallets["ana"] = models.Wallet{UserID: "ana", Balance: 40}
	b.following["ana"] = []string{"ben"}
	return b
}

func TestInitSignedOut(t *testing.T) {
	s := New(newFakeAuth(""), newFakeBackend(), &fakeFollower{})
	defer s.Close()

	require.NoError(t, s.Init(context.Background()))
	st := s.Snapshot()
	assert.True(t, st.Ready)
	assert.Nil(t, st.User)
	assert.Equal(t, "", s.UserID())
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(s.ToggleFollow(context.Background(), "ben")))
}

func TestInitLoadsEverything(t *testing.T) {
	backend := seededBackend()
	s := New(newFakeAuth("ana"), backend, &fakeFollower{})
	defer s.Close()

	require.NoError(t, s.Init(context.Background()))
	st := s.Snapshot()
	assert.True(t, st.Ready)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Ana", st.Profile.Name)
	require.NotNil(t, st.Wallet)
	assert.Equal(t, int64(40), st.Wallet.Balance)
	assert.Equal(t, []string{"ben"}, st.Following)
	assert.True(t, s.IsFollowing("ben"))
	assert.False(t, s.IsFollowing("cy"))

	balance, ok := s.Balance()
	assert.True(t, ok)
	assert.Equal(t, int64(40), balance)

	_, cached := s.Profiles().Get("ana")
	assert.True(t, cached)
}

func TestNotReadyUntilAllLoadsResolve(t *testing.T) {
	backend := seededBackend()
	backend.gate = make(chan struct{})
	s := New(newFakeAuth("ana"), backend, &fakeFollower{})
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Init(context.Background()) }()

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.profileN == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, s.Ready())
	assert.Nil(t, s.Snapshot().Profile, "no partial identity while loading")

	close(backend.gate)
	require.NoError(t, <-done)
	assert.True(t, s.Ready())
	assert.NotNil(t, s.Snapshot().Profile)
}

func TestInitFailureIsReported(t *testing.T) {
	backend := seededBackend()
	backend.walletErr = apperr.Wrap(apperr.CodeInternal, "Could not load your wallet", errors.New("timeout"))
	s := New(newFakeAuth("ana"), backend, &fakeFollower{})
	defer s.Close()

	require.Error(t, s.Init(context.Background()))
	st := s.Snapshot()
	assert.True(t, st.Ready)
	assert.Equal(t, "Could not load your wallet", st.Err)
	assert.Nil(t, st.Profile)
}

func TestUserSwitchDropsPreviousUsersState(t *testing.T) {
	backend := seededBackend()
	a := newFakeAuth("ana")
	s := New(a, backend, &fakeFollower{})
	defer s.Close()
	require.NoError(t, s.Init(context.Background()))
	require.True(t, s.IsFollowing("ben"))

	a.switchTo("zed")
	backend.mu.Lock()
	backend.walletErr = apperr.Internal("Could not load your wallet")
	backend.mu.Unlock()

	require.Error(t, s.Init(context.Background()))
	st := s.Snapshot()
	assert.True(t, st.Ready)
	assert.Equal(t, "zed", s.UserID())
	assert.Nil(t, st.Profile)
	assert.Nil(t, st.Wallet)
	assert.Empty(t, st.Following)
	assert.False(t, s.IsFollowing("ben"))
	_, ok := s.Balance()
	assert.False(t, ok, "no balance to check spends against")
}

func TestToggleFollowConfirms(t *testing.T) {
	s := New(newFakeAuth("ana"), seededBackend(), &fakeFollower{})
	defer s.Close()
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.ToggleFollow(context.Background(), "cy"))
	assert.True(t, s.IsFollowing("cy"))
	assert.Equal(t, []string{"ben", "cy"}, s.Snapshot().Following)
	assert.Empty(t, s.Snapshot().Pending)
}

func TestToggleFollowRollsBack(t *testing.T) {
	follower := &fakeFollower{
		err:     apperr.NotFound("User not found"),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(newFakeAuth("ana"), seededBackend(), follower)
	defer s.Close()
	require.NoError(t, s.Init(context.Background()))

	ctx := context.Background()
	for _, target := range []string{"ben", "cy"} {
		before := s.Snapshot().Following
		wasFollowing := s.IsFollowing(target)

		done := make(chan error, 1)
		go func() { done <- s.ToggleFollow(ctx, target) }()
		<-follower.entered

		assert.Equal(t, !wasFollowing, s.IsFollowing(target), "flipped before the server answers")
		assert.ErrorIs(t, s.ToggleFollow(ctx, target), ErrMutationInFlight)

		follower.release <- struct{}{}
		err := <-done
		require.Error(t, err)
		assert.Equal(t, "User not found", apperr.Message(err))

		assert.Equal(t, wasFollowing, s.IsFollowing(target))
		assert.Equal(t, before, s.Snapshot().Following)
		assert.Equal(t, "User not found", s.Snapshot().Err)
	}
}

func TestWatchClearsOnSignOut(t *testing.T) {
	a := newFakeAuth("ana")
	s := New(a, seededBackend(), &fakeFollower{})
	defer s.Close()
	require.NoError(t, s.Init(context.Background()))
	s.Watch()

	a.signOut()
	require.Eventually(t, func() bool {
		st := s.Snapshot()
		return st.Ready && st.User == nil
	}, time.Second, 5*time.Millisecond)

	st := s.Snapshot()
	assert.Nil(t, st.Profile)
	assert.Nil(t, st.Wallet)
	assert.Empty(t, st.Following)
	_, cached := s.Profiles().Get("ana")
	assert.False(t, cached)
}

func TestRealtimeKeepsSessionCurrent(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	backend := seededBackend()
	s := New(newFakeAuth("ana"), backend, &fakeFollower{}, WithSubscriber(broker))
	require.NoError(t, s.Init(context.Background()))
	require.NotNil(t, s.Bridge())
	assert.Equal(t, 4, broker.ActiveSubscriptions())

	ctx := context.Background()
	backend.mu.Lock()
	backend.wallets["ana"] = models.Wallet{UserID: "ana", Balance: 90}
	backend.mu.Unlock()
	ch, err := realtime.NewChange("wallets", realtime.EventUpdate, models.Wallet{UserID: "ana", Balance: 90}, nil)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, ch))

	require.Eventually(t, func() bool {
		b, _ := s.Balance()
		return b == 90
	}, time.Second, 5*time.Millisecond)

	// another user's wallet is not ours
	other, err := realtime.NewChange("wallets", realtime.EventUpdate, models.Wallet{UserID: "ben", Balance: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, other))

	follow, err := realtime.NewChange("follows", realtime.EventInsert, models.Follow{FollowerID: "ana", FollowingID: "dee"}, nil)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(ctx, follow))
	require.Eventually(t, func() bool { return s.IsFollowing("dee") }, time.Second, 5*time.Millisecond)

	b, _ := s.Balance()
	assert.Equal(t, int64(90), b)

	s.Close()
	assert.Equal(t, 0, broker.ActiveSubscriptions())
}
