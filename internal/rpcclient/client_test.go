package rpcclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/api"
	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/feed"
	"github.com/vibecampus/vibehub/internal/gateway"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/storage"
	"github.com/vibecampus/vibehub/pkg/config"
)

type backend struct {
	srv *httptest.Server
	db  *db.DB
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := db.NewMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	store, err := storage.NewLocal(&config.StorageConfig{Root: t.TempDir(), PublicBaseURL: "http://files.test"})
	require.NoError(t, err)

	repo := db.NewRepository(d.DB, broker)
	router := api.NewRouter(api.Dependencies{
		DB:   d,
		Repo: repo,
		Auth: auth.NewService(repo, &config.AuthConfig{
			JWTSecret: "0123456789abcdef0123456789abcdef",
			TokenTTL:  time.Hour,
		}, auth.LogMailer{}),
		Procedures: procedures.NewRegistry(repo),
		Storage:    store,
		Realtime:   broker,
	})
	engine := gin.New()
	router.SetupRoutes(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &backend{srv: srv, db: d}
}

// signedIn returns a client and auth session for a fresh account
func (b *backend) signedIn(t *testing.T, email string) (*Client, *auth.Client) {
	t.Helper()
	var session *auth.Client
	c, err := New(&config.BackendConfig{URL: b.srv.URL + "/"}, WithToken(func() string { return session.Token() }))
	require.NoError(t, err)
	session = auth.NewClient(c.Auth())
	_, err = session.SignUp(context.Background(), auth.SignUpParams{Email: email, Password: "correct horse", Name: strings.Split(email, "@")[0], College: "MIT"})
	require.NoError(t, err)
	return c, session
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(&config.BackendConfig{})
	assert.Error(t, err)
}

func TestSessionBackendCalls(t *testing.T) {
	b := newBackend(t)
	c, session := b.signedIn(t, "ada@example.edu")
	ctx := context.Background()

	p, err := c.Profile(ctx, session.UserID())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "ada", p.Name)

	missing, err := c.Profile(ctx, "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	w, err := c.Wallet(ctx, session.UserID())
	require.NoError(t, err)
	assert.Equal(t, session.UserID(), w.UserID)

	sub, err := c.Subscription(ctx, session.UserID())
	require.NoError(t, err)
	assert.Nil(t, sub)

	ids, err := c.FollowingIDs(ctx, session.UserID())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestErrorsCarryServerMessage(t *testing.T) {
	b := newBackend(t)
	c, _ := b.signedIn(t, "ada@example.edu")
	ctx := context.Background()

	g := gateway.New(c.Procedures())
	_, err := g.CreateTask(ctx, "Fix my bike", "", 50)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeFailedPrecondition, apperr.CodeOf(err))
	assert.Equal(t, "Insufficient balance", apperr.Message(err))

	_, err = c.Posts().Create(ctx, models.Post{})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	assert.Equal(t, "content", apperr.FieldOf(err))
}

func TestBadTokenIsUnauthenticated(t *testing.T) {
	b := newBackend(t)
	c, err := New(&config.BackendConfig{URL: b.srv.URL}, WithToken(func() string { return "expired" }))
	require.NoError(t, err)

	_, err = c.Posts().List(context.Background(), models.PostFilter{}, 0, 10)
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
}

func TestUnreachableServer(t *testing.T) {
	b := newBackend(t)
	url := b.srv.URL
	b.srv.Close()

	c, err := New(&config.BackendConfig{URL: url})
	require.NoError(t, err)
	_, err = c.Posts().List(context.Background(), models.PostFilter{}, 0, 10)
	assert.Equal(t, apperr.CodeUnavailable, apperr.CodeOf(err))
}

func TestFeedOverTheNetwork(t *testing.T) {
	b := newBackend(t)
	ada, _ := b.signedIn(t, "ada@example.edu")
	bob, _ := b.signedIn(t, "bob@example.edu")
	ctx := context.Background()

	ws, err := bob.DialRealtime(ctx)
	require.NoError(t, err)
	defer ws.Close()

	ctl := feed.New[models.Post, models.PostFilter](bob.Posts(), models.PostFilter{}, feed.Options[models.Post, models.PostFilter]{
		Scope: "home",
		Less:  func(a, b models.Post) bool { return a.CreatedAt.After(b.CreatedAt) },
		Match: func(f models.PostFilter, p models.Post) bool { return f.Match(p) },
		Realtime: func(models.PostFilter) []realtime.Filter {
			return []realtime.Filter{realtime.Table("posts")}
		},
		Subscriber: ws,
	})
	defer ctl.Close()
	require.NoError(t, ctl.Load(ctx))
	require.Eventually(t, func() bool { return ws.ActiveSubscriptions() == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, ctl.Snapshot().Items)

	post, err := ada.Posts().Create(ctx, models.Post{Content: "hello from ada"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		items := ctl.Snapshot().Items
		return len(items) == 1 && items[0].ID == post.ID
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ada.Posts().Delete(ctx, post.ID))
	require.Eventually(t, func() bool { return len(ctl.Snapshot().Items) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestUpload(t *testing.T) {
	b := newBackend(t)
	c, session := b.signedIn(t, "ada@example.edu")

	res, err := c.Upload(context.Background(), "avatar.png", strings.NewReader("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, session.UserID()+"/avatar.png", res.Path)
	assert.Equal(t, "http://files.test/"+res.Path, res.URL)
}
