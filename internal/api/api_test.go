package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/internal/auth"
	"github.com/vibecampus/vibehub/internal/cache"
	"github.com/vibecampus/vibehub/internal/db"
	"github.com/vibecampus/vibehub/internal/models"
	"github.com/vibecampus/vibehub/internal/procedures"
	"github.com/vibecampus/vibehub/internal/realtime"
	"github.com/vibecampus/vibehub/internal/storage"
	"github.com/vibecampus/vibehub/pkg/config"
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	router *Router
	db     *db.DB
	redis  *miniredis.Miniredis
	broker *realtime.MemoryBroker
	nextID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := db.NewMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })

	store, err := storage.NewLocal(&config.StorageConfig{Root: t.TempDir(), PublicBaseURL: "http://files.test/v1/storage/object"})
	require.NoError(t, err)

	repo := db.NewRepository(d.DB, broker)
	router := NewRouter(Dependencies{
		DB:    d,
		Cache: c,
		Repo:  repo,
		Auth: auth.NewService(repo, &config.AuthConfig{
			JWTSecret:   "0123456789abcdef0123456789abcdef",
			TokenTTL:    time.Hour,
			RecoveryTTL: time.Minute,
		}, auth.LogMailer{}),
		Procedures: procedures.NewRegistry(repo),
		Storage:    store,
		Realtime:   broker,
		ProfileTTL: time.Minute,
	})

	engine := gin.New()
	router.SetupRoutes(engine)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testServer{t: t, srv: srv, router: router, db: d, redis: mr, broker: broker}
}

// call posts one JSON-RPC request and returns the decoded response
func (s *testServer) call(token, method string, params interface{}) JSONRPCResponse {
	s.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(s.t, err)
	id := atomic.AddInt64(&s.nextID, 1)
	body, err := json.Marshal(JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: raw})
	require.NoError(s.t, err)

	status, out := s.post(token, body)
	require.Equal(s.t, http.StatusOK, status, string(out))
	var resp JSONRPCResponse
	require.NoError(s.t, json.Unmarshal(out, &resp))
	return resp
}

func (s *testServer) post(token string, body []byte) (int, []byte) {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/rpc", bytes.NewReader(body))
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, out
}

func (s *testServer) result(token, method string, params, out interface{}) {
	s.t.Helper()
	resp := s.call(token, method, params)
	require.Nil(s.t, resp.Error, "%s failed: %+v", method, resp.Error)
	require.NoError(s.t, json.Unmarshal(resp.Result, out))
}

func (s *testServer) signUp(email, name, college string) *auth.Session {
	s.t.Helper()
	var session auth.Session
	s.result("", "auth.sign_up", auth.SignUpParams{Email: email, Password: "correct horse", Name: name, College: college}, &session)
	return &session
}

func (s *testServer) fund(userID string, balance int64) {
	s.t.Helper()
	require.NoError(s.t, s.db.Model(&models.Wallet{}).Where("user_id = ?", userID).Update("balance", balance).Error)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtocolErrors(t *testing.T) {
	s := newTestServer(t)

	status, out := s.post("", []byte(`{"jsonrpc": "2.0", "id": 1, "method": "nope.nothing"}`))
	require.Equal(t, http.StatusOK, status)
	var resp JSONRPCResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMethodNotFound, resp.Error.Code)

	_, out = s.post("", []byte(`{"jsonrpc": "1.0", "id": 1, "method": "posts.list"}`))
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, ErrInvalidRequest, resp.Error.Code)

	_, out = s.post("", []byte(`not json`))
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, ErrParseError, resp.Error.Code)

	status, _ = s.post("garbage-token", []byte(`{"jsonrpc": "2.0", "id": 1, "method": "posts.list"}`))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApplicationErrorsKeepCodeAndMessage(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")

	resp := s.call(ada.AccessToken, "posts.create", models.Post{Content: "   "})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidParams, resp.Error.Code)
	assert.Equal(t, "Write something or add a photo", resp.Error.Message)
	assert.Equal(t, "content", resp.Error.Data.Field)

	appErr := resp.Error.AsAppError()
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(appErr))
	assert.Equal(t, "content", apperr.FieldOf(appErr))

	resp = s.call("", "posts.create", models.Post{Content: "hi"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrUnauthenticated, resp.Error.Code)

	resp = s.call(ada.AccessToken, "rpc.collab.create_task", procedures.CreateTaskParams{Title: "Fix my bike", Reward: 50})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrFailedPrecondition, resp.Error.Code)
	assert.Equal(t, "Insufficient balance", resp.Error.Message)
	assert.Equal(t, apperr.CodeFailedPrecondition, resp.Error.Data.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")

	var user auth.User
	s.result(ada.AccessToken, "auth.current_user", nil, &user)
	assert.Equal(t, ada.User.ID, user.ID)

	var signedIn auth.Session
	s.result("", "auth.sign_in", SignInParams{Email: "ada@example.edu", Password: "correct horse"}, &signedIn)
	assert.Equal(t, ada.User.ID, signedIn.User.ID)

	resp := s.call("", "auth.sign_in", SignInParams{Email: "ada@example.edu", Password: "wrong password"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrUnauthenticated, resp.Error.Code)
}

func TestPostsOwnership(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	bob := s.signUp("bob@example.edu", "Bob", "MIT")

	var post models.Post
	s.result(ada.AccessToken, "posts.create", models.Post{Content: "hello campus", AuthorID: bob.User.ID}, &post)
	assert.Equal(t, ada.User.ID, post.AuthorID)
	assert.NotEmpty(t, post.ID)

	var page []models.Post
	s.result("", "posts.list", ListParams{Limit: 10}, &page)
	require.Len(t, page, 1)
	assert.Equal(t, "hello campus", page[0].Content)

	resp := s.call(bob.AccessToken, "posts.create", models.Post{ID: post.ID, Content: "hijacked"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	resp = s.call(bob.AccessToken, "posts.delete", IDParams{ID: post.ID})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
	var still models.Post
	s.result("", "posts.get", IDParams{ID: post.ID}, &still)
	assert.Equal(t, "hello campus", still.Content)

	var deleted map[string]bool
	s.result(ada.AccessToken, "posts.delete", IDParams{ID: post.ID}, &deleted)
	assert.True(t, deleted["deleted"])
	resp = s.call("", "posts.get", IDParams{ID: post.ID})
	require.Nil(t, resp.Error)
	assert.Equal(t, "null", string(resp.Result))
}

func TestEventsHidePendingFromStudents(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	bob := s.signUp("bob@example.edu", "Bob", "MIT")

	var event models.Event
	s.result(ada.AccessToken, "events.create", models.Event{
		Title:    "Hackathon",
		StartsAt: time.Now().Add(48 * time.Hour),
		Status:   models.EventApproved,
	}, &event)
	assert.Equal(t, models.EventPending, event.Status)

	var page []models.Event
	s.result(bob.AccessToken, "events.list", ListParams{Filter: json.RawMessage(`{"status": "pending"}`)}, &page)
	assert.Empty(t, page)

	require.NoError(t, s.db.Model(&models.Profile{}).Where("id = ?", bob.User.ID).Update("access", models.AccessModerator).Error)
	s.redis.FlushAll()
	s.result(bob.AccessToken, "events.list", ListParams{Filter: json.RawMessage(`{"status": "pending"}`)}, &page)
	assert.Len(t, page, 1)
}

func TestEventCannotBeResubmitted(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	mod := s.signUp("mod@example.edu", "Mod", "MIT")
	require.NoError(t, s.db.Model(&models.Profile{}).Where("id = ?", mod.User.ID).Update("access", models.AccessModerator).Error)

	var event models.Event
	s.result(ada.AccessToken, "events.create", models.Event{Title: "Hackathon", StartsAt: time.Now().Add(48 * time.Hour)}, &event)
	s.result(mod.AccessToken, "rpc.event.moderate", procedures.EventModerateParams{EventID: event.ID, Status: models.EventApproved}, &event)
	require.Equal(t, models.EventApproved, event.Status)

	resp := s.call(ada.AccessToken, "events.create", models.Event{ID: event.ID, Title: "Hackathon v2", StartsAt: time.Now().Add(72 * time.Hour)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "This event was already submitted", resp.Error.Message)

	var stored models.Event
	require.NoError(t, s.db.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, models.EventApproved, stored.Status)
	assert.Equal(t, "Hackathon", stored.Title)
}

func TestProfileCache(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")

	var p models.Profile
	s.result("", "profiles.get", IDParams{ID: ada.User.ID}, &p)
	assert.Equal(t, "Ada", p.Name)
	assert.True(t, s.redis.Exists("vibehub:"+profileKey(ada.User.ID)))

	name := "Ada Lovelace"
	s.result(ada.AccessToken, "profiles.update", db.ProfileUpdate{Name: &name}, &p)
	assert.Equal(t, name, p.Name)
	assert.False(t, s.redis.Exists("vibehub:"+profileKey(ada.User.ID)))

	s.result("", "profiles.get", IDParams{ID: ada.User.ID}, &p)
	assert.Equal(t, name, p.Name)
}

func TestCollabConversationIsPrivate(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	bob := s.signUp("bob@example.edu", "Bob", "MIT")
	eve := s.signUp("eve@example.edu", "Eve", "MIT")
	s.fund(ada.User.ID, 100)

	var task models.CollabPost
	s.result(ada.AccessToken, "rpc.collab.create_task", procedures.CreateTaskParams{Title: "Poster design", Reward: 40}, &task)

	var app models.CollabApplication
	s.result(bob.AccessToken, "rpc.collab.apply", procedures.ApplyParams{PostID: task.ID, Message: "me!"}, &app)
	s.result(ada.AccessToken, "rpc.collab.accept_application", procedures.ApplicationParams{ApplicationID: app.ID}, &task)
	assert.Equal(t, models.TaskInProgress, task.Status)

	var msg models.CollabMessage
	s.result(bob.AccessToken, "collab_messages.create", models.CollabMessage{PostID: task.ID, Content: "draft attached"}, &msg)
	assert.Equal(t, bob.User.ID, msg.SenderID)

	var msgs []models.CollabMessage
	s.result(ada.AccessToken, "collab_messages.list", ListParams{Filter: json.RawMessage(`{"post_id": "` + task.ID + `"}`)}, &msgs)
	assert.Len(t, msgs, 1)

	resp := s.call(eve.AccessToken, "collab_messages.list", ListParams{Filter: json.RawMessage(`{"post_id": "` + task.ID + `"}`)})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	var escrow models.Escrow
	s.result(ada.AccessToken, "escrows.for_post", PostParams{PostID: task.ID}, &escrow)
	assert.Equal(t, int64(40), escrow.Amount)
	assert.Equal(t, models.EscrowHeld, escrow.Status)

	var wallet models.Wallet
	s.result(ada.AccessToken, "wallets.get", nil, &wallet)
	assert.Equal(t, int64(60), wallet.Balance)
}

func TestCollegeRooms(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	prof := s.signUp("prof@example.edu", "Prof", "MIT")
	require.NoError(t, s.db.Model(&models.Profile{}).Where("id = ?", prof.User.ID).
		Updates(map[string]interface{}{"role": models.RoleFaculty, "verified": true}).Error)

	var msg models.CollegeMessage
	s.result(ada.AccessToken, "college_messages.create", models.CollegeMessage{Content: "anyone at the library?"}, &msg)
	assert.Equal(t, "MIT", msg.College)
	assert.Equal(t, models.RoomCommon, msg.Room)

	resp := s.call(ada.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomFaculty, Content: "hi"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	resp = s.call(ada.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomAnnouncements, Content: "free pizza"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	s.result(prof.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomFaculty, Content: "grades due"}, &msg)
	assert.Equal(t, models.RoomFaculty, msg.Room)

	var msgs []models.CollegeMessage
	s.result(ada.AccessToken, "college_messages.list", ListParams{Filter: json.RawMessage(`{"college": "MIT"}`)}, &msgs)
	assert.Len(t, msgs, 1)
}

func TestFacultyRoomNeedsVerification(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	mod := s.signUp("mod@example.edu", "Mod", "MIT")
	require.NoError(t, s.db.Model(&models.Profile{}).Where("id = ?", mod.User.ID).Update("access", models.AccessModerator).Error)

	role := models.RoleFaculty
	var p models.Profile
	s.result(ada.AccessToken, "profiles.update", db.ProfileUpdate{Role: &role}, &p)
	assert.Equal(t, models.RoleFaculty, p.Role)
	assert.False(t, p.Verified)

	resp := s.call(ada.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomFaculty, Content: "self-declared"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	resp = s.call(ada.AccessToken, "rpc.admin.verify_profile", procedures.UserParams{UserID: ada.User.ID})
	require.NotNil(t, resp.Error, "users cannot verify themselves")
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)

	s.result(mod.AccessToken, "rpc.admin.verify_profile", procedures.UserParams{UserID: ada.User.ID}, &p)
	assert.True(t, p.Verified)

	var msg models.CollegeMessage
	s.result(ada.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomFaculty, Content: "office hours"}, &msg)
	assert.Equal(t, models.RoomFaculty, msg.Room)

	college := "Harvard"
	s.result(ada.AccessToken, "profiles.update", db.ProfileUpdate{College: &college}, &p)
	assert.False(t, p.Verified, "moving college drops verification")

	resp = s.call(ada.AccessToken, "college_messages.create", models.CollegeMessage{Room: models.RoomFaculty, Content: "new campus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPermissionDenied, resp.Error.Code)
}

func TestComplaintsScope(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	bob := s.signUp("bob@example.edu", "Bob", "MIT")
	mod := s.signUp("mod@example.edu", "Mod", "MIT")
	require.NoError(t, s.db.Model(&models.Profile{}).Where("id = ?", mod.User.ID).Update("access", models.AccessModerator).Error)

	var c models.Complaint
	s.result(ada.AccessToken, "complaints.create", models.Complaint{Subject: "Broken heater", Status: models.ComplaintResolved}, &c)
	assert.Equal(t, models.ComplaintSubmitted, c.Status)
	assert.Equal(t, "MIT", c.College)

	var list []models.Complaint
	s.result(bob.AccessToken, "complaints.list", ListParams{}, &list)
	assert.Empty(t, list)

	s.result(mod.AccessToken, "complaints.list", ListParams{}, &list)
	assert.Len(t, list, 1)

	s.result(mod.AccessToken, "rpc.complaint.advance", procedures.ComplaintAdvanceParams{ComplaintID: c.ID, Status: models.ComplaintInReview}, &c)
	assert.Equal(t, models.ComplaintInReview, c.Status)
}

func TestRealtimeOverWebsocket(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")
	bob := s.signUp("bob@example.edu", "Bob", "MIT")

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/v1/realtime"
	client, err := realtime.DialWS(context.Background(), wsURL, bob.AccessToken)
	require.NoError(t, err)

	changes := make(chan realtime.Change, 8)
	sub, err := client.Subscribe(realtime.Table("posts"), func(ch realtime.Change) { changes <- ch })
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.router.hub.Subscriptions() == 1 }, time.Second, 10*time.Millisecond)

	_, err = client.Subscribe(realtime.Eq("wallets", "user_id", ada.User.ID), func(realtime.Change) {})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return client.ActiveSubscriptions() == 1 }, time.Second, 10*time.Millisecond)

	var post models.Post
	s.result(ada.AccessToken, "posts.create", models.Post{Content: "live!"}, &post)

	select {
	case ch := <-changes:
		assert.Equal(t, realtime.EventInsert, ch.Type)
		assert.Equal(t, post.ID, ch.RecordID())
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	sub.Unsubscribe()
	require.Eventually(t, func() bool { return s.router.hub.Subscriptions() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool {
		return s.router.hub.Connections() == 0 && s.broker.ActiveSubscriptions() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestStorageRoundTrip(t *testing.T) {
	s := newTestServer(t)
	ada := s.signUp("ada@example.edu", "Ada", "MIT")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("lecture notes"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("path", "course/notes.txt"))
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/storage/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ada.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var up UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&up))
	assert.Equal(t, ada.User.ID+"/course/notes.txt", up.Path)
	assert.Equal(t, "http://files.test/v1/storage/object/"+up.Path, up.URL)

	get, err := http.Get(s.srv.URL + "/v1/storage/object/" + up.Path)
	require.NoError(t, err)
	defer get.Body.Close()
	data, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	assert.Equal(t, "lecture notes", string(data))

	missing, err := http.Get(s.srv.URL + "/v1/storage/object/nobody/else.txt")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
