package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relaychat/config"
	"relaychat/internal/commands"
	"relaychat/internal/handler"
	"relaychat/internal/repository"
	"relaychat/internal/services"
	"relaychat/internal/websocket"
	"relaychat/pkg/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testAPI struct {
	t      *testing.T
	router http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.InitSchema(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.DB = db
	t.Cleanup(func() { database.DB = nil })

	cfg := &config.Config{
		AppMode:         TestMode,
		JWTSecret:       "test-secret",
		JWTExpiryMin:    60,
		CallRingTimeout: 45 * time.Second,
		ICEStunURLs:     []string{"stun:stun.example.org:3478"},
	}

	users := repository.NewUserRepository(db)
	contacts := repository.NewContactRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := websocket.NewHub(nil)
	bus := commands.NewBus()
	auth := services.NewAuthService(users, cfg)
	notifier := services.NewNotificationService(notificationRepo, hub, nil)
	uploads := services.NewUploadService(nil)
	conversations := services.NewConversationService(repository.NewConversationRepository(db), repository.NewMessageRepository(db), users, notifier, hub, uploads, bus, nil)
	calls := services.NewCallService(repository.NewCallRepository(db), users, notifier, hub, cfg.CallRingTimeout, nil)
	calls.RegisterHandlers(bus)
	presence := services.NewPresenceService(contacts, nil, nil)
	presence.SetRelay(hub)
	presence.SetLocalView(hub.Online)

	srv := New(cfg, nil)
	srv.SetupRoutes(&Handlers{
		Auth:         handler.NewAuthHandler(auth),
		User:         handler.NewUserHandler(services.NewUserService(users), presence),
		Call:         handler.NewCallHandler(calls, services.NewICEService(cfg)),
		Conversation: handler.NewConversationHandler(conversations),
		Contact:      handler.NewContactHandler(services.NewContactService(contacts, users, notifier, nil)),
		Notification: handler.NewNotificationHandler(notifier),
		Upload:       handler.NewUploadHandler(uploads),
		Relay:        websocket.NewHandler(auth, hub, bus, presence, nil),
	}, auth, nil)

	return &testAPI{t: t, router: srv.Handler()}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec.Code, env
}

func (a *testAPI) decode(env envelope, into any) {
	a.t.Helper()
	if err := json.Unmarshal(env.Data, into); err != nil {
		a.t.Fatalf("decode %s: %v", env.Data, err)
	}
}

type session struct {
	token string
	id    string
}

func (a *testAPI) register(username string) session {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"username":     username,
		"password":     "correct-horse",
		"display_name": username,
	})
	if status != http.StatusCreated {
		a.t.Fatalf("register %s: %d %+v", username, status, env)
	}
	var res struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	a.decode(env, &res)
	return session{token: res.AccessToken, id: res.User.ID}
}

type callView struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	AnsweredAt *string `json:"answered_at"`
	EndedAt    *string `json:"ended_at"`
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/ping", "/health", "/metrics"} {
		if status, _ := api.do(http.MethodGet, path, "", nil); status != http.StatusOK {
			t.Fatalf("%s = %d", path, status)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/v1/auth/me", "/v1/calls", "/v1/notifications", "/v1/conversations"} {
		status, env := api.do(http.MethodGet, path, "", nil)
		if status != http.StatusUnauthorized || env.Code != "UNAUTHORIZED" {
			t.Fatalf("%s = %d %+v", path, status, env)
		}
	}
	if status, _ := api.do(http.MethodGet, "/v1/auth/me", "not-a-jwt", nil); status != http.StatusUnauthorized {
		t.Fatalf("forged token = %d", status)
	}
}

func TestLoginAndMe(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")

	status, env := api.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad password = %d %+v", status, env)
	}
	status, env = api.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"username": "alice", "password": "correct-horse", "display_name": "again"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate register = %d %+v", status, env)
	}

	status, env = api.do(http.MethodGet, "/v1/auth/me", alice.token, nil)
	if status != http.StatusOK {
		t.Fatalf("me = %d %+v", status, env)
	}
	var me struct {
		ID string `json:"id"`
	}
	api.decode(env, &me)
	if me.ID != alice.id {
		t.Fatalf("me = %s, want %s", me.ID, alice.id)
	}
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	alice, bob, carol := api.register("alice"), api.register("bob"), api.register("carol")

	status, env := api.do(http.MethodPost, "/v1/calls", alice.token, map[string]string{"type": "video", "receiver_id": bob.id})
	if status != http.StatusCreated {
		t.Fatalf("initiate = %d %+v", status, env)
	}
	var c callView
	api.decode(env, &c)
	if c.Status != "RINGING" {
		t.Fatalf("status = %s", c.Status)
	}

	if status, _ := api.do(http.MethodPost, "/v1/calls/"+c.ID+"/answer", alice.token, map[string]bool{"accepted": true}); status != http.StatusForbidden {
		t.Fatalf("caller answering = %d, want 403", status)
	}
	if status, _ := api.do(http.MethodGet, "/v1/calls/"+c.ID, carol.token, nil); status != http.StatusNotFound {
		t.Fatalf("outsider read = %d, want 404", status)
	}

	status, env = api.do(http.MethodPost, "/v1/calls/"+c.ID+"/answer", bob.token, map[string]bool{"accepted": true})
	if status != http.StatusOK {
		t.Fatalf("answer = %d %+v", status, env)
	}
	api.decode(env, &c)
	if c.Status != "ONGOING" || c.AnsweredAt == nil || c.EndedAt != nil {
		t.Fatalf("after answer = %+v", c)
	}

	status, env = api.do(http.MethodPost, "/v1/calls/"+c.ID+"/answer", bob.token, map[string]bool{"accepted": true})
	if status != http.StatusConflict || env.Code != "CONFLICT" {
		t.Fatalf("double answer = %d %+v", status, env)
	}

	status, env = api.do(http.MethodPost, "/v1/calls", carol.token, map[string]string{"type": "audio", "receiver_id": alice.id})
	if status != http.StatusBadRequest || env.Error != "user already in a call" {
		t.Fatalf("busy = %d %+v", status, env)
	}

	status, env = api.do(http.MethodPatch, "/v1/calls/"+c.ID, bob.token, map[string]string{"action": "ENDED"})
	if status != http.StatusBadRequest {
		t.Fatalf("raw status patch = %d %+v", status, env)
	}

	status, env = api.do(http.MethodPatch, "/v1/calls/"+c.ID, alice.token, map[string]string{"action": "end"})
	if status != http.StatusOK {
		t.Fatalf("end = %d %+v", status, env)
	}
	api.decode(env, &c)
	if c.Status != "ENDED" || c.AnsweredAt == nil || c.EndedAt == nil {
		t.Fatalf("after end = %+v", c)
	}

	status, env = api.do(http.MethodGet, "/v1/calls/active", alice.token, nil)
	var active struct {
		Calls []callView `json:"calls"`
	}
	api.decode(env, &active)
	if status != http.StatusOK || len(active.Calls) != 0 {
		t.Fatalf("active = %d %+v", status, active)
	}
}

func TestICEServersFallback(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")

	status, env := api.do(http.MethodGet, "/v1/calls/ice-servers", alice.token, nil)
	if status != http.StatusOK {
		t.Fatalf("ice = %d %+v", status, env)
	}
	var res struct {
		ICEServers []struct {
			URLs       []string `json:"urls"`
			Credential string   `json:"credential"`
		} `json:"ice_servers"`
	}
	api.decode(env, &res)
	if len(res.ICEServers) != 1 || res.ICEServers[0].URLs[0] != "stun:stun.example.org:3478" || res.ICEServers[0].Credential != "" {
		t.Fatalf("servers = %+v", res.ICEServers)
	}
}

func TestDirectMessageCreatesNotification(t *testing.T) {
	api := newTestAPI(t)
	alice, bob := api.register("alice"), api.register("bob")

	status, env := api.do(http.MethodPost, "/v1/conversations/direct", alice.token, map[string]string{"user_id": bob.id})
	if status != http.StatusOK {
		t.Fatalf("direct = %d %+v", status, env)
	}
	var conv struct {
		ID string `json:"id"`
	}
	api.decode(env, &conv)

	status, env = api.do(http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", alice.token, map[string]string{"content": "hi bob"})
	if status != http.StatusCreated {
		t.Fatalf("send = %d %+v", status, env)
	}

	var count struct {
		Unread int64 `json:"unread"`
	}
	_, env = api.do(http.MethodGet, "/v1/notifications/unread-count", bob.token, nil)
	api.decode(env, &count)
	if count.Unread != 1 {
		t.Fatalf("bob unread = %d, want 1", count.Unread)
	}
	_, env = api.do(http.MethodGet, "/v1/notifications/unread-count", alice.token, nil)
	api.decode(env, &count)
	if count.Unread != 0 {
		t.Fatalf("alice unread = %d, want 0", count.Unread)
	}

	status, env = api.do(http.MethodPost, "/v1/notifications/read-all", bob.token, nil)
	if status != http.StatusOK {
		t.Fatalf("read-all = %d %+v", status, env)
	}
}

func TestUploadsWithoutStorage(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice")

	status, env := api.do(http.MethodPost, "/v1/uploads/presign", alice.token, map[string]any{"content_type": "image/png", "size_bytes": 1024})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("presign = %d %+v", status, env)
	}
}
