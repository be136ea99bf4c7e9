package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/config"
	"github.com/vovakirdan/yapyard-server/internal/core"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
	"github.com/vovakirdan/yapyard-server/internal/store/sqlite"
	transport "github.com/vovakirdan/yapyard-server/internal/transport/http"
	"github.com/vovakirdan/yapyard-server/internal/upload"
)

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = "client-test-secret"
	cfg.UploadDir = t.TempDir()
	logger := applog.Nop()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	uploader, err := upload.NewDiskUploader(cfg.UploadDir, cfg.UploadBaseURL, cfg.MaxImageBytes, logger)
	require.NoError(t, err)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, uploader)

	hub := core.NewHub(nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := transport.NewServer(transport.Deps{
		Hub:      hub,
		Relay:    core.NewRelay(st, uploader, hub, logger),
		Auth:     authService,
		Messages: messages.New(st, nil, logger),
	}, cfg, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func newUser(t *testing.T, baseURL, name string) *API {
	t.Helper()

	api := NewAPI(baseURL)
	_, err := api.Signup(context.Background(), SignupInput{
		FullName: name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "password123",
		Bio:      "hi",
	})
	require.NoError(t, err)
	return api
}

func startSession(t *testing.T, baseURL string, api *API) *Session {
	t.Helper()

	s, err := NewSession(api, SessionConfig{
		SocketURL:   strings.Replace(baseURL, "http", "ws", 1) + "/ws",
		SeenWorkers: 1,
	}, applog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Connect(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = s.Close()
		<-done
	})
	return s
}

func waitOnline(t *testing.T, s *Session, ids ...UserID) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range ids {
			if !s.Store().IsOnline(id) {
				return false
			}
		}
		return true
	}, waitFor, tick)
}

func TestSessionRequiresLogin(t *testing.T) {
	_, err := NewSession(NewAPI("http://127.0.0.1:1"), SessionConfig{}, applog.Nop())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestMessageToPeerViewingOtherConversation(t *testing.T) {
	baseURL := startServer(t)
	alice, bob, carol := newUser(t, baseURL, "Alice"), newUser(t, baseURL, "Bob"), newUser(t, baseURL, "Carol")
	a, b, c := alice.Me().ID, bob.Me().ID, carol.Me().ID
	ctx := context.Background()

	sa := startSession(t, baseURL, alice)
	sb := startSession(t, baseURL, bob)
	waitOnline(t, sa, a, b)
	waitOnline(t, sb, a, b)

	require.NoError(t, sb.Open(ctx, c))
	require.NoError(t, sa.Open(ctx, b))
	require.NoError(t, sa.Send(ctx, "hi", ""))

	require.Eventually(t, func() bool { return sb.Store().Unseen(a) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(sa.Store().Snapshot().View) == 1 }, waitFor, tick)

	view := sa.Store().Snapshot().View
	assert.Equal(t, "hi", view[0].Text)
	assert.Equal(t, a, view[0].SenderID)
	assert.Equal(t, "Alice", view[0].SenderName)
	assert.False(t, view[0].Seen)

	bobSnap := sb.Store().Snapshot()
	assert.Equal(t, c, bobSnap.OpenPeer)
	assert.Empty(t, bobSnap.View)
}

func TestMessageToPeerWithConversationOpen(t *testing.T) {
	baseURL := startServer(t)
	alice, bob := newUser(t, baseURL, "Alice"), newUser(t, baseURL, "Bob")
	a, b := alice.Me().ID, bob.Me().ID
	ctx := context.Background()

	sa := startSession(t, baseURL, alice)
	sb := startSession(t, baseURL, bob)
	waitOnline(t, sa, a, b)
	waitOnline(t, sb, a, b)

	require.NoError(t, sb.Open(ctx, a))
	require.NoError(t, sa.Open(ctx, b))
	require.NoError(t, sa.Send(ctx, "hi", ""))

	require.Eventually(t, func() bool { return len(sb.Store().Snapshot().View) == 1 }, waitFor, tick)
	assert.Equal(t, 0, sb.Store().Unseen(a))

	// Bob's mark-seen call reaches the server; Alice's history shows it.
	require.Eventually(t, func() bool {
		history, err := alice.History(ctx, b)
		return err == nil && len(history) == 1 && history[0].Seen
	}, waitFor, tick)
}

func TestMessageToOfflinePeer(t *testing.T) {
	baseURL := startServer(t)
	alice, bob := newUser(t, baseURL, "Alice"), newUser(t, baseURL, "Bob")
	a, b := alice.Me().ID, bob.Me().ID
	ctx := context.Background()

	sa := startSession(t, baseURL, alice)
	waitOnline(t, sa, a)
	require.NoError(t, sa.Open(ctx, b))
	require.NoError(t, sa.Send(ctx, "are you there?", ""))

	require.Eventually(t, func() bool { return len(sa.Store().Snapshot().View) == 1 }, waitFor, tick)
	assert.False(t, sa.Store().Snapshot().View[0].Seen)

	sb := startSession(t, baseURL, bob)
	require.NoError(t, sb.LoadContacts(ctx))
	assert.Equal(t, 1, sb.Store().Unseen(a))

	require.NoError(t, sb.Open(ctx, a))
	view := sb.Store().Snapshot().View
	require.Len(t, view, 1)
	assert.Equal(t, "are you there?", view[0].Text)
	assert.True(t, view[0].Seen)

	require.NoError(t, sb.LoadContacts(ctx))
	assert.Equal(t, 0, sb.Store().Unseen(a))
}

func TestSessionReportsSendErrors(t *testing.T) {
	baseURL := startServer(t)
	alice, bob := newUser(t, baseURL, "Alice"), newUser(t, baseURL, "Bob")

	sa := startSession(t, baseURL, alice)
	require.NoError(t, sa.SendTo(context.Background(), bob.Me().ID, "   ", ""))

	deadline := time.After(waitFor)
	for {
		select {
		case u := <-sa.Updates():
			if u.Kind != UpdateError {
				continue
			}
			var sendErr *SendError
			require.True(t, errors.As(u.Err, &sendErr))
			assert.Equal(t, core.ErrCodeEmptyMessage, sendErr.Code)
			return
		case <-deadline:
			t.Fatal("no messageError received")
		}
	}
}

func TestSessionSendWithoutConversation(t *testing.T) {
	baseURL := startServer(t)
	sa := startSession(t, baseURL, newUser(t, baseURL, "Alice"))
	assert.ErrorIs(t, sa.Send(context.Background(), "hi", ""), ErrNoConversation)
}

func TestAPIErrors(t *testing.T) {
	baseURL := startServer(t)
	api := NewAPI(baseURL)

	_, _, err := api.Contacts(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = api.Login(context.Background(), "nobody@example.com", "password123")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func TestAPISearchUsers(t *testing.T) {
	baseURL := startServer(t)
	alice := newUser(t, baseURL, "Alice")
	bob := newUser(t, baseURL, "Bobby")

	found, err := alice.SearchUsers(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob.Me().ID, found[0].ID)

	_, err = alice.SearchUsers(context.Background(), "b")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
}
