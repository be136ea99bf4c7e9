package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/proto"
)

// UpdateKind tells a UI what changed.
type UpdateKind int

const (
	UpdatePresence UpdateKind = iota + 1
	UpdateMessage
	UpdateConversation
	UpdateContacts
	UpdateError
)

// Update is emitted on Session.Updates after the store has changed.
type Update struct {
	Kind    UpdateKind
	Outcome Outcome
	Message Message
	Err     error
}

// ErrNoConversation is returned by Send when no conversation is open.
var ErrNoConversation = errors.New("no conversation open")

// SendError is a messageError pushed by the server for one of our sends.
type SendError struct {
	Code    string
	Message string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SessionConfig tunes a Session.
type SessionConfig struct {
	SocketURL   string
	SeenWorkers int
	SeenQueue   int
}

// Session ties the REST API, the socket and the store together for one
// logged-in user.
type Session struct {
	api    *API
	store  *Store
	seen   *Synchronizer
	socket *Socket
	cfg    SessionConfig
	logger *zerolog.Logger

	updates   chan Update
	closeOnce sync.Once
}

// NewSession creates a session for the user api is logged in as.
func NewSession(api *API, cfg SessionConfig, logger *zerolog.Logger) (*Session, error) {
	me := api.Me()
	if api.Token() == "" || me.ID == "" {
		return nil, ErrNotLoggedIn
	}
	return &Session{
		api:     api,
		store:   NewStore(me.ID),
		seen:    NewSynchronizer(api, cfg.SeenWorkers, cfg.SeenQueue, logger),
		cfg:     cfg,
		logger:  logger,
		updates: make(chan Update, 64),
	}, nil
}

// API returns the REST client the session uses.
func (s *Session) API() *API {
	return s.api
}

// Store exposes the session state.
func (s *Session) Store() *Store {
	return s.store
}

// Updates delivers change notifications. Slow readers miss updates but never
// state: Store().Snapshot() is always current.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

func (s *Session) emit(u Update) {
	select {
	case s.updates <- u:
	default:
	}
}

// Connect opens the socket.
func (s *Session) Connect(ctx context.Context) error {
	socket, err := DialSocket(ctx, s.cfg.SocketURL, s.api.Token())
	if err != nil {
		return err
	}
	s.socket = socket
	return nil
}

// Run applies server pushes until ctx ends or the socket closes.
func (s *Session) Run(ctx context.Context) error {
	if s.socket == nil {
		return errors.New("session not connected")
	}
	for {
		ev, err := s.socket.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.apply(ev)
	}
}

func (s *Session) apply(ev proto.InboundEvent) {
	if ev.Type == proto.OutboundTypeError {
		if ev.Error != nil {
			s.emit(Update{Kind: UpdateError, Err: &SendError{Code: ev.Error.Code, Message: ev.Error.Msg}})
		}
		return
	}

	switch ev.Event {
	case proto.EventGetOnlineUsers:
		var ids []string
		if err := json.Unmarshal(ev.Data, &ids); err != nil {
			s.logger.Warn().Err(err).Msg("bad presence payload")
			return
		}
		online := make([]UserID, 0, len(ids))
		for _, id := range ids {
			online = append(online, UserID(id))
		}
		s.store.SetOnline(online)
		s.emit(Update{Kind: UpdatePresence})

	case proto.EventNewMessage:
		var payload proto.MessagePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			s.logger.Warn().Err(err).Msg("bad message payload")
			return
		}
		msg := messageFromPayload(payload)
		outcome := s.store.ApplyPush(msg)
		if outcome == AppendToOpen {
			s.seen.MarkSeen(msg.ID)
		}
		s.emit(Update{Kind: UpdateMessage, Outcome: outcome, Message: msg})

	case proto.EventMessageError:
		var data proto.MessageErrorData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			s.logger.Warn().Err(err).Msg("bad messageError payload")
			return
		}
		s.emit(Update{Kind: UpdateError, Err: &SendError{Code: data.Code, Message: data.Error}})

	default:
		s.logger.Debug().Str("event", ev.Event).Msg("ignoring event")
	}
}

// LoadContacts refreshes contacts and unseen counters.
func (s *Session) LoadContacts(ctx context.Context) error {
	gen := s.store.BeginContacts()
	contacts, unseen, err := s.api.Contacts(ctx)
	if err != nil {
		return err
	}
	if s.store.CompleteContacts(gen, contacts, unseen) {
		s.emit(Update{Kind: UpdateContacts})
	}
	return nil
}

// Open makes peer the open conversation and loads its history. Pushes from
// peer that arrive during the fetch are kept.
func (s *Session) Open(ctx context.Context, peer UserID) error {
	gen := s.store.BeginOpen(peer)
	history, err := s.api.History(ctx, peer)
	if err != nil {
		s.store.FailOpen(gen)
		return err
	}
	if s.store.CompleteOpen(gen, history) {
		s.emit(Update{Kind: UpdateConversation})
	}
	return nil
}

// CloseConversation leaves the open conversation.
func (s *Session) CloseConversation() {
	s.store.CloseConversation()
	s.emit(Update{Kind: UpdateConversation})
}

// Send sends text to the open conversation.
func (s *Session) Send(ctx context.Context, text, image string) error {
	peer := s.store.OpenPeer()
	if peer == "" {
		return ErrNoConversation
	}
	return s.SendTo(ctx, peer, text, image)
}

// SendTo sends to any peer. The echo comes back as a push.
func (s *Session) SendTo(ctx context.Context, peer UserID, text, image string) error {
	if s.socket == nil {
		return errors.New("session not connected")
	}
	return s.socket.Send(ctx, peer, text, image)
}

// RefreshOnline asks the server for a presence snapshot.
func (s *Session) RefreshOnline(ctx context.Context) error {
	if s.socket == nil {
		return errors.New("session not connected")
	}
	return s.socket.RequestOnline(ctx)
}

// Close stops the synchronizer after flushing queued mark-seen calls and
// closes the socket.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.socket != nil {
			err = s.socket.Close()
		}
		s.seen.Shutdown()
	})
	return err
}
