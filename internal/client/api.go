package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vovakirdan/yapyard-server/internal/proto"
)

var (
	// ErrNotLoggedIn is returned by calls that need a token before Login or Signup.
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// API is a REST client for the account and message endpoints.
type API struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
	me    Contact
}

// NewAPI creates a client for the server at baseURL (http://host:port).
func NewAPI(baseURL string) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	return &API{http: c}
}

type errorBody struct {
	Error string `json:"error"`
}

type authBody struct {
	Token    string            `json:"token"`
	UserData proto.UserPayload `json:"userData"`
}

type userBody struct {
	UserData proto.UserPayload `json:"userData"`
}

type usersBody struct {
	Users []proto.UserPayload `json:"users"`
}

type historyBody struct {
	Messages []proto.MessagePayload `json:"messages"`
}

type sentBody struct {
	NewMessage proto.MessagePayload `json:"newMessage"`
}

// SignupInput is the signup form.
type SignupInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

// Signup creates an account and keeps its token.
func (a *API) Signup(ctx context.Context, in SignupInput) (Contact, error) {
	var out authBody
	if err := a.do(ctx, http.MethodPost, "/api/auth/signup", in, &out, false); err != nil {
		return Contact{}, fmt.Errorf("signup: %w", err)
	}
	return a.remember(out), nil
}

// Login authenticates and keeps the token.
func (a *API) Login(ctx context.Context, email, password string) (Contact, error) {
	body := map[string]string{"email": email, "password": password}
	var out authBody
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &out, false); err != nil {
		return Contact{}, fmt.Errorf("login: %w", err)
	}
	return a.remember(out), nil
}

func (a *API) remember(out authBody) Contact {
	me := contactFromPayload(out.UserData)
	a.mu.Lock()
	a.token = out.Token
	a.me = me
	a.mu.Unlock()
	return me
}

// Check validates the stored token and returns the current user.
func (a *API) Check(ctx context.Context) (Contact, error) {
	var out userBody
	if err := a.do(ctx, http.MethodGet, "/api/auth/check", nil, &out, true); err != nil {
		return Contact{}, fmt.Errorf("check: %w", err)
	}
	return contactFromPayload(out.UserData), nil
}

// Token returns the bearer token from the last login or signup.
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Me returns the logged-in user.
func (a *API) Me() Contact {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.me
}

// Contacts lists every other user and the unseen counts per peer.
func (a *API) Contacts(ctx context.Context) ([]Contact, map[UserID]int, error) {
	var out proto.ContactsResponse
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &out, true); err != nil {
		return nil, nil, fmt.Errorf("contacts: %w", err)
	}
	contacts := make([]Contact, 0, len(out.Users))
	for _, u := range out.Users {
		contacts = append(contacts, contactFromPayload(u))
	}
	unseen := make(map[UserID]int, len(out.UnseenMessages))
	for peer, n := range out.UnseenMessages {
		unseen[UserID(peer)] = n
	}
	return contacts, unseen, nil
}

// SearchUsers finds other users by name. The query needs at least three
// characters.
func (a *API) SearchUsers(ctx context.Context, query string) ([]Contact, error) {
	var out usersBody
	req := func(r *resty.Request) { r.SetQueryParam("q", query) }
	if err := a.do(ctx, http.MethodGet, "/api/users/search", nil, &out, true, req); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	contacts := make([]Contact, 0, len(out.Users))
	for _, u := range out.Users {
		contacts = append(contacts, contactFromPayload(u))
	}
	return contacts, nil
}

// History fetches the conversation with peer. The server marks every unseen
// message from peer as seen before answering.
func (a *API) History(ctx context.Context, peer UserID) ([]Message, error) {
	var out historyBody
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+string(peer), nil, &out, true); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return messagesFromPayload(out.Messages), nil
}

// MarkSeen flips one message to seen.
func (a *API) MarkSeen(ctx context.Context, messageID string) error {
	if err := a.do(ctx, http.MethodPut, "/api/messages/mark/"+messageID, nil, nil, true); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Send posts a message over REST instead of the socket.
func (a *API) Send(ctx context.Context, peer UserID, text, image string) (Message, error) {
	body := map[string]string{"text": text, "image": image}
	var out sentBody
	if err := a.do(ctx, http.MethodPost, "/api/messages/send/"+string(peer), body, &out, true); err != nil {
		return Message{}, fmt.Errorf("send: %w", err)
	}
	return messageFromPayload(out.NewMessage), nil
}

func (a *API) do(ctx context.Context, method, path string, body, result any, authed bool, opts ...func(*resty.Request)) error {
	req := a.http.R().SetContext(ctx).SetError(&errorBody{})
	for _, opt := range opts {
		opt(req)
	}
	if authed {
		token := a.Token()
		if token == "" {
			return ErrNotLoggedIn
		}
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if eb, ok := resp.Error().(*errorBody); ok {
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	return nil
}
