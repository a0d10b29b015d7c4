package views

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/gateway"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/session"
	"github.com/vibecampus/vibehub/pkg/config"
)

type backend struct {
	db     *db.DB
	repo   *db.Repository
	broker *realtime.MemoryBroker
	auth   *auth.Service
	procs  *procedures.Registry
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	d, err := db.NewMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	repo := db.NewRepository(d.DB, broker)
	return &backend{
		db:     d,
		repo:   repo,
		broker: broker,
		auth: auth.NewService(repo, &config.AuthConfig{
			JWTSecret:   "0123456789abcdef0123456789abcdef",
			TokenTTL:    time.Hour,
			RecoveryTTL: time.Minute,
		}, auth.LogMailer{}),
		procs: procedures.NewRegistry(repo),
	}
}

// app signs up a user and returns a mounted-ready view context for them
func (b *backend) app(t *testing.T, email, college string) *Context {
	t.Helper()
	ctx := context.Background()

	client := auth.NewClient(b.auth)
	_, err := client.SignUp(ctx, auth.SignUpParams{Email: email, Password: "correct horse", Name: email, College: college})
	require.NoError(t, err)

	gw := gateway.New(b.procs.Caller(client.UserID))
	store := session.New(client, session.NewRepositoryBackend(b.repo), gw, session.WithSubscriber(b.broker))
	require.NoError(t, store.Init(ctx))

	vc := NewContext(Config{
		Session:  store,
		Realtime: b.broker,
		Sources:  LocalSources(b.repo, client.UserID),
		Gateway:  gw,
		Feed:     config.FeedConfig{PageSize: 20, Debounce: 10 * time.Millisecond},
	})
	t.Cleanup(vc.Close)
	return vc
}

func (b *backend) fund(t *testing.T, userID string, balance int64) {
	t.Helper()
	require.NoError(t, b.db.Model(&models.Wallet{}).Where("user_id = ?", userID).Update("balance", balance).Error)
}

func (b *backend) event(t *testing.T, creator string, limit, attendees int) models.Event {
	t.Helper()
	e := models.Event{
		ID:            uuid.NewString(),
		CreatorID:     creator,
		Title:         "Open mic",
		StartsAt:      time.Now().Add(24 * time.Hour).UTC(),
		Status:        models.EventApproved,
		RSVPLimit:     limit,
		AttendeeCount: attendees,
	}
	require.NoError(t, db.NewEventRepository(b.repo).Upsert(context.Background(), &e))
	return e
}

func TestCloseReleasesEveryBridge(t *testing.T) {
	b := newBackend(t)
	vc := b.app(t, "ada@campus.edu", "Riverside")
	ctx := context.Background()

	home := HomeFeed(vc, models.PostFilter{})
	room := CommonRoom(vc)
	events := EventsList(vc, models.EventFilter{})
	board := CollabBoard(vc, models.CollabFilter{})
	desk := Complaints(vc, models.ComplaintFilter{})

	require.NoError(t, home.Mount(ctx))
	require.NoError(t, room.Mount(ctx))
	require.NoError(t, events.Mount(ctx))
	require.NoError(t, board.Mount(ctx))
	require.NoError(t, desk.Mount(ctx))

	assert.Equal(t, 5, vc.Mounted())
	assert.Equal(t, 5, vc.ActiveBridges())
	assert.Greater(t, b.broker.ActiveSubscriptions(), 5, "views plus the session")

	home.Close()
	assert.Equal(t, 4, vc.Mounted())
	assert.Equal(t, 4, vc.ActiveBridges())

	vc.Close()
	assert.Equal(t, 0, vc.Mounted())
	assert.Equal(t, 0, vc.ActiveBridges())
	assert.Equal(t, 0, b.broker.ActiveSubscriptions())

	err := HomeFeed(vc, models.PostFilter{}).Mount(ctx)
	assert.ErrorIs(t, err, ErrContextClosed)
	assert.Equal(t, 0, b.broker.ActiveSubscriptions())
}

func TestComposeShowsPostOnce(t *testing.T) {
	b := newBackend(t)
	ada := b.app(t, "ada@campus.edu", "Riverside")
	bob := b.app(t, "bob@campus.edu", "Riverside")
	ctx := context.Background()

	mine := HomeFeed(ada, models.PostFilter{})
	theirs := HomeFeed(bob, models.PostFilter{})
	require.NoError(t, mine.Mount(ctx))
	require.NoError(t, theirs.Mount(ctx))

	require.NoError(t, mine.Compose(ctx, "  first post  ", ""))
	snap := mine.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "first post", snap.Items[0].Content)

	assert.Eventually(t, func() bool { return len(theirs.Snapshot().Items) == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(mine.Snapshot().Items) != 1 }, 100*time.Millisecond, 10*time.Millisecond)

	err := mine.Compose(ctx, "   ", "")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	id := snap.Items[0].ID
	require.NoError(t, mine.Delete(ctx, id))
	assert.Eventually(t, func() bool { return len(theirs.Snapshot().Items) == 0 }, time.Second, 10*time.Millisecond)
}

func TestRSVPToggle(t *testing.T) {
	b := newBackend(t)
	vc := b.app(t, "ada@campus.edu", "Riverside")
	ctx := context.Background()
	user := vc.Session().UserID()

	open := b.event(t, user, 0, 0)
	full := b.event(t, user, 1, 1)

	events := EventsList(vc, models.EventFilter{})
	require.NoError(t, events.Mount(ctx))
	require.Len(t, events.Snapshot().Items, 2)
	assert.False(t, events.IsAttending(open.ID))

	require.NoError(t, events.ToggleRSVP(ctx, open.ID))
	assert.True(t, events.IsAttending(open.ID))
	assert.Equal(t, map[string]bool{open.ID: true}, events.Attending())

	err := events.ToggleRSVP(ctx, full.ID)
	require.Error(t, err)
	assert.Equal(t, "This event is full", apperr.Message(err))
	assert.False(t, events.IsAttending(full.ID), "rolled back")
	assert.Equal(t, "This event is full", events.Err())

	require.NoError(t, events.ToggleRSVP(ctx, open.ID))
	assert.False(t, events.IsAttending(open.ID))
	assert.Empty(t, events.Err())
}

func TestRSVPRequiresSignIn(t *testing.T) {
	b := newBackend(t)
	vc := NewContext(Config{Realtime: b.broker, Sources: LocalSources(b.repo, func() string { return "" })})
	defer vc.Close()

	events := EventsList(vc, models.EventFilter{})
	require.NoError(t, events.Mount(context.Background()))
	err := events.ToggleRSVP(context.Background(), uuid.NewString())
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestRoomAccess(t *testing.T) {
	b := newBackend(t)
	vc := b.app(t, "ada@campus.edu", "Riverside")
	ctx := context.Background()

	faculty := FacultyRoom(vc)
	err := faculty.Mount(ctx)
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	assert.Equal(t, 0, vc.Mounted())

	hub := HubAnnouncements(vc)
	require.NoError(t, hub.Mount(ctx))
	assert.False(t, hub.CanPost())
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(hub.Send(ctx, "hello", "")))

	common := CommonRoom(vc)
	require.NoError(t, common.Mount(ctx))
	require.True(t, common.CanPost())
	require.NoError(t, common.Send(ctx, "hello", ""))
	items := common.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "Riverside", items[0].College)
	assert.Empty(t, hub.Snapshot().Items)
}

func TestRoomNeedsCollege(t *testing.T) {
	b := newBackend(t)
	vc := b.app(t, "ada@campus.edu", "")

	err := CommonRoom(vc).Mount(context.Background())
	assert.Equal(t, apperr.CodeFailedPrecondition, apperr.CodeOf(err))
}

func TestBoardActions(t *testing.T) {
	b := newBackend(t)
	ada := b.app(t, "ada@campus.edu", "Riverside")
	bob := b.app(t, "bob@campus.edu", "Riverside")
	ctx := context.Background()
	b.fund(t, ada.Session().UserID(), 100)

	board := CollabBoard(ada, models.CollabFilter{})
	require.NoError(t, board.Mount(ctx))
	task, err := board.Post(ctx, "Logo", "Need a logo for the robotics club", 40)
	require.NoError(t, err)

	actions, err := board.Actions(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, gateway.TaskActions{Accept: true, Cancel: true}, actions)

	other := CollabBoard(bob, models.CollabFilter{})
	require.NoError(t, other.Mount(ctx))
	assert.Eventually(t, func() bool { return len(board.Snapshot().Items) == 1 }, time.Second, 10*time.Millisecond)

	actions, err = other.Actions(ctx, *task)
	require.NoError(t, err)
	assert.Equal(t, gateway.TaskActions{Apply: true}, actions)

	err = board.Apply(ctx, *task, "me")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	require.NoError(t, other.Apply(ctx, *task, "I can help"))

	require.NoError(t, board.Cancel(ctx, *task))
	wallet, err := db.NewWalletRepository(b.repo).GetByUserID(ctx, ada.Session().UserID())
	require.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Balance, "reward refunded")
}

func TestComplaintDesk(t *testing.T) {
	b := newBackend(t)
	ada := b.app(t, "ada@campus.edu", "Riverside")
	bob := b.app(t, "bob@campus.edu", "Riverside")
	ctx := context.Background()

	mine := Complaints(ada, models.ComplaintFilter{})
	theirs := Complaints(bob, models.ComplaintFilter{})
	require.NoError(t, mine.Mount(ctx))
	require.NoError(t, theirs.Mount(ctx))
	assert.Equal(t, ada.Session().UserID(), mine.Filter().UserID)

	require.NoError(t, mine.Submit(ctx, "Broken heater", "Room 204"))
	items := mine.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, models.ComplaintSubmitted, items[0].Status)
	assert.Equal(t, "Riverside", items[0].College)

	assert.Never(t, func() bool { return len(theirs.Snapshot().Items) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	err := mine.Submit(ctx, " ", "")
	assert.Equal(t, "subject", apperr.FieldOf(err))
}
