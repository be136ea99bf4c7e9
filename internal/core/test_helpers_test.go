package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/yapyard-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent fails if an event of the given kind is already queued on ch.
// Callers must synchronise with the hub first (Online works as a barrier).
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func startHub(t *testing.T) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(nil, nil)
	go hub.Run(ctx)
	return hub, ctx
}

// barrier waits until every command queued so far has been handled.
func barrier(t *testing.T, ctx context.Context, hub *Hub) []UserID {
	t.Helper()

	online, err := hub.Online(ctx)
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	return online
}

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*store.User
	saved   []*store.Message
	saveErr error
}

func newFakeStore(users ...string) *fakeStore {
	s := &fakeStore{users: make(map[string]*store.User)}
	for _, id := range users {
		s.users[id] = &store.User{ID: id, FullName: "User " + id, ProfilePic: "/uploads/" + id + ".png"}
	}
	return s
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	msg.ID = "m" + string(rune('0'+len(s.saved)))
	s.saved = append(s.saved, msg)
	return nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakeUploader struct {
	url       string
	err       error
	calls     int
	discarded []string
}

func (u *fakeUploader) Upload(_ context.Context, _ string) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}

func (u *fakeUploader) Discard(_ context.Context, url string) error {
	u.discarded = append(u.discarded, url)
	return nil
}

var errBoom = errors.New("boom")
