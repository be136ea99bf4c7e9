package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/config"
	"github.com/vovakirdan/yapyard-server/internal/core"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
	"github.com/vovakirdan/yapyard-server/internal/store"
	"github.com/vovakirdan/yapyard-server/internal/store/sqlite"
	"github.com/vovakirdan/yapyard-server/internal/upload"
)

type testEnv struct {
	ts    *httptest.Server
	store store.Store
	auth  *auth.Service
	hub   *core.Hub
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string, uploader auth.Uploader) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig, uploader)
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "testsecret"
	cfg.UploadDir = t.TempDir()
	cfg.UploadBaseURL = "/uploads"
	cfg.CORSOrigins = []string{"http://localhost:5173"}
	return cfg
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	logger := applog.Nop()

	st := createTestStore(t)
	uploader, err := upload.NewDiskUploader(cfg.UploadDir, cfg.UploadBaseURL, cfg.MaxImageBytes, logger)
	if err != nil {
		t.Fatalf("uploader: %v", err)
	}
	authService := createTestAuthService(t, st, cfg.JWTSecret, uploader)

	hub := core.NewHub(nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	relay := core.NewRelay(st, uploader, hub, logger)
	server := NewServer(Deps{
		Hub:      hub,
		Relay:    relay,
		Auth:     authService,
		Messages: messages.New(st, nil, logger),
	}, cfg, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, hub: hub}
}

func (e *testEnv) signup(t *testing.T, name string) (string, string) {
	t.Helper()

	user, token, err := e.auth.Signup(context.Background(), auth.SignupInput{
		FullName: name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "password123",
		Bio:      "hello, I am " + name,
	})
	if err != nil {
		t.Fatalf("signup %s: %v", name, err)
	}
	return user.ID, token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?" + query
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *stdhttp.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := stdhttp.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *stdhttp.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// readEvent reads frames until one with the given event name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, name string) proto.InboundEvent {
	t.Helper()

	for {
		var ev proto.InboundEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("waiting for %s: %v", name, err)
		}
		if ev.Event == name {
			return ev
		}
	}
}

// readOnline waits for a presence snapshot equal to want (as a set).
func readOnline(t *testing.T, ctx context.Context, conn *websocket.Conn, want ...string) {
	t.Helper()

	for {
		ev := readEvent(t, ctx, conn, proto.EventGetOnlineUsers)
		var online []string
		if err := json.Unmarshal(ev.Data, &online); err != nil {
			t.Fatalf("decode online users: %v", err)
		}
		if sameSet(online, want) {
			return
		}
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

func sendMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, data proto.SendMessageData) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSendMessage, Data: payload}); err != nil {
		t.Fatalf("write sendMessage: %v", err)
	}
}

func decodeMessage(t *testing.T, ev proto.InboundEvent) proto.MessagePayload {
	t.Helper()

	var msg proto.MessagePayload
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}
