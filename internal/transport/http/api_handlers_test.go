package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/store"
)

// 1x1 transparent PNG.
const pixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func TestSignupLoginCheck(t *testing.T) {
	env := startTestServer(t, nil)

	resp := env.request(t, stdhttp.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Alice", Email: "alice@example.com", Password: "password123", Bio: "hi",
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("signup status %d", resp.StatusCode)
	}
	var signup AuthResponse
	decodeBody(t, resp, &signup)
	if signup.Token == "" || signup.UserData.ID == "" || signup.UserData.FullName != "Alice" {
		t.Fatalf("unexpected signup response %+v", signup)
	}

	resp = env.request(t, stdhttp.MethodPost, "/api/auth/signup", "", SignupRequest{
		FullName: "Alice", Email: "alice@example.com", Password: "password123", Bio: "hi",
	})
	if resp.StatusCode != stdhttp.StatusConflict {
		t.Fatalf("duplicate signup status %d", resp.StatusCode)
	}

	resp = env.request(t, stdhttp.MethodPost, "/api/auth/signup", "", map[string]string{"email": "x@example.com"})
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("missing details status %d", resp.StatusCode)
	}

	resp = env.request(t, stdhttp.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "nope"})
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("bad login status %d", resp.StatusCode)
	}

	resp = env.request(t, stdhttp.MethodPost, "/api/auth/login", "", LoginRequest{Email: "alice@example.com", Password: "password123"})
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var login AuthResponse
	decodeBody(t, resp, &login)

	resp = env.request(t, stdhttp.MethodGet, "/api/auth/check", login.Token, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("check status %d", resp.StatusCode)
	}
	var me UserResponse
	decodeBody(t, resp, &me)
	if me.UserData.ID != signup.UserData.ID || me.UserData.Email != "alice@example.com" {
		t.Fatalf("unexpected check response %+v", me)
	}

	resp = env.request(t, stdhttp.MethodGet, "/api/auth/check", "", nil)
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("check without token status %d", resp.StatusCode)
	}
}

func TestUpdateProfileServesUploadedPicture(t *testing.T) {
	env := startTestServer(t, nil)
	_, token := env.signup(t, "Alice")

	resp := env.request(t, stdhttp.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{
		FullName: "Alice Liddell", Bio: "down the hole", ProfilePic: pixelPNG,
	})
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("update status %d", resp.StatusCode)
	}
	var updated UserResponse
	decodeBody(t, resp, &updated)
	if updated.UserData.FullName != "Alice Liddell" || !strings.HasPrefix(updated.UserData.ProfilePic, "/uploads/") {
		t.Fatalf("unexpected profile %+v", updated.UserData)
	}

	pic := env.request(t, stdhttp.MethodGet, updated.UserData.ProfilePic, "", nil)
	if pic.StatusCode != stdhttp.StatusOK {
		t.Fatalf("uploaded picture status %d", pic.StatusCode)
	}

	resp = env.request(t, stdhttp.MethodPut, "/api/auth/update-profile", token, UpdateProfileRequest{
		FullName: "Alice", ProfilePic: "data:text/plain;base64,aGVsbG8=",
	})
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("non-image upload status %d", resp.StatusCode)
	}
}

func TestContactsReportUnseenCounts(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := context.Background()

	aliceID, _ := env.signup(t, "Alice")
	bobID, bobToken := env.signup(t, "Bob")
	carolID, _ := env.signup(t, "Carol")

	now := time.Now().UTC()
	for i, text := range []string{"one", "two"} {
		msg := &store.Message{SenderID: aliceID, ReceiverID: bobID, Text: text, CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := env.store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	resp := env.request(t, stdhttp.MethodGet, "/api/messages/users", bobToken, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("contacts status %d", resp.StatusCode)
	}
	var contacts proto.ContactsResponse
	decodeBody(t, resp, &contacts)

	if len(contacts.Users) != 2 || contacts.Users[0].ID != aliceID || contacts.Users[1].ID != carolID {
		t.Fatalf("unexpected users %+v", contacts.Users)
	}
	if contacts.Users[0].Email != "" {
		t.Fatal("contact emails must not leak")
	}
	if contacts.UnseenMessages[aliceID] != 2 || len(contacts.UnseenMessages) != 1 {
		t.Fatalf("unexpected unseen map %v", contacts.UnseenMessages)
	}
}

func TestMarkSeenOnlyByReceiver(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := context.Background()

	aliceID, aliceToken := env.signup(t, "Alice")
	bobID, bobToken := env.signup(t, "Bob")

	msg := &store.Message{SenderID: aliceID, ReceiverID: bobID, Text: "hi"}
	if err := env.store.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp := env.request(t, stdhttp.MethodPut, "/api/messages/mark/"+msg.ID, aliceToken, nil)
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("sender mark status %d", resp.StatusCode)
	}

	for range 2 {
		resp = env.request(t, stdhttp.MethodPut, "/api/messages/mark/"+msg.ID, bobToken, nil)
		if resp.StatusCode != stdhttp.StatusNoContent {
			t.Fatalf("receiver mark status %d", resp.StatusCode)
		}
	}

	stored, err := env.store.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Seen {
		t.Fatal("message should be seen")
	}
}

func TestRESTSendPushesToConnectedReceiver(t *testing.T) {
	env := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceID, aliceToken := env.signup(t, "Alice")
	bobID, bobToken := env.signup(t, "Bob")

	bob := env.dial(t, ctx, "token="+bobToken)
	readOnline(t, ctx, bob, bobID)

	resp := env.request(t, stdhttp.MethodPost, "/api/messages/send/"+bobID, aliceToken, SendMessageRequest{Text: "via rest"})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("send status %d", resp.StatusCode)
	}
	var sent MessageResponse
	decodeBody(t, resp, &sent)
	if sent.NewMessage.Sender.ID != aliceID || sent.NewMessage.Seen {
		t.Fatalf("unexpected sent message %+v", sent.NewMessage)
	}

	pushed := decodeMessage(t, readEvent(t, ctx, bob, proto.EventNewMessage))
	if pushed.ID != sent.NewMessage.ID {
		t.Fatalf("push id %q, want %q", pushed.ID, sent.NewMessage.ID)
	}

	resp = env.request(t, stdhttp.MethodPost, "/api/messages/send/"+bobID, aliceToken, SendMessageRequest{})
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("empty send status %d", resp.StatusCode)
	}
	resp = env.request(t, stdhttp.MethodPost, "/api/messages/send/ghost", aliceToken, SendMessageRequest{Text: "x"})
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("unknown receiver status %d", resp.StatusCode)
	}
}

func TestHistoryUnknownPeer(t *testing.T) {
	env := startTestServer(t, nil)
	_, token := env.signup(t, "Alice")

	resp := env.request(t, stdhttp.MethodGet, "/api/messages/ghost", token, nil)
	if resp.StatusCode != stdhttp.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := startTestServer(t, nil)

	req, err := stdhttp.NewRequest(stdhttp.MethodOptions, env.ts.URL+"/api/auth/login", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusNoContent {
		t.Fatalf("preflight status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin %q", got)
	}
}

func TestSearchUsers(t *testing.T) {
	env := startTestServer(t, nil)
	_, token := env.signup(t, "Alice")
	bobID, _ := env.signup(t, "Bob")

	resp := env.request(t, stdhttp.MethodGet, "/api/users/search?q=bo", token, nil)
	if resp.StatusCode != stdhttp.StatusBadRequest {
		t.Fatalf("short query status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, stdhttp.MethodGet, "/api/users/search?q=bob", token, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out UsersResponse
	decodeBody(t, resp, &out)
	if len(out.Users) != 1 || out.Users[0].ID != bobID || out.Users[0].Email != "" {
		t.Fatalf("unexpected users: %+v", out.Users)
	}
}
