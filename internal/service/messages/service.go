// Package messages implements the REST side of conversations: the contact
// list with unseen counts, history fetches and explicit seen marks.
package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/events"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/store"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrSelfPeer        = errors.New("cannot open a conversation with yourself")
)

// SeenPublisher is told about seen flips.
type SeenPublisher interface {
	MessagesSeen(ctx context.Context, notice events.SeenNotice)
}

// Service provides conversation queries.
type Service struct {
	store store.Store
	seen  SeenPublisher
	log   *zerolog.Logger
}

// New creates a message service. seen may be nil.
func New(st store.Store, seen SeenPublisher, logger *zerolog.Logger) *Service {
	if logger == nil {
		logger = applog.Nop()
	}
	return &Service{store: st, seen: seen, log: logger}
}

// Contacts lists every other user along with how many messages each has sent
// the viewer that are still unseen. Peers with nothing unseen are omitted from
// the map.
func (s *Service) Contacts(ctx context.Context, viewerID string) ([]*store.User, map[string]int, error) {
	users, err := s.store.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list users: %w", err)
	}
	unseen, err := s.store.CountUnseenBySender(ctx, viewerID)
	if err != nil {
		return nil, nil, fmt.Errorf("count unseen: %w", err)
	}
	return users, unseen, nil
}

// SearchContacts returns the other users whose full name contains query,
// ignoring case.
func (s *Service) SearchContacts(ctx context.Context, viewerID, query string) ([]*store.User, error) {
	users, err := s.store.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]*store.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FullName), needle) {
			matches = append(matches, u)
		}
	}
	return matches, nil
}

// History marks every unseen message from peer to viewer as seen and returns
// the full conversation in creation order.
func (s *Service) History(ctx context.Context, viewerID, peerID string) ([]*core.Message, error) {
	if viewerID == peerID {
		return nil, ErrSelfPeer
	}

	viewer, err := s.getUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	peer, err := s.getUser(ctx, peerID)
	if err != nil {
		return nil, err
	}

	records, flipped, err := s.store.FetchHistory(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	if flipped > 0 {
		s.log.Debug().Str("user_id", viewerID).Str("peer_id", peerID).Int64("count", flipped).
			Msg("conversation marked seen")
		if s.seen != nil {
			s.seen.MessagesSeen(ctx, events.SeenNotice{ViewerID: viewerID, PeerID: peerID, Count: flipped})
		}
	}

	senders := map[string]*store.User{viewer.ID: viewer, peer.ID: peer}
	out := make([]*core.Message, 0, len(records))
	for _, rec := range records {
		out = append(out, toCore(rec, senders[rec.SenderID]))
	}
	return out, nil
}

// MarkSeen flips one message addressed to viewer to seen. Marking an already
// seen message succeeds.
func (s *Service) MarkSeen(ctx context.Context, viewerID, messageID string) error {
	changed, err := s.store.MarkSeen(ctx, messageID, viewerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("mark seen: %w", err)
	}
	if changed && s.seen != nil {
		s.seen.MessagesSeen(ctx, events.SeenNotice{ViewerID: viewerID, MessageID: messageID, Count: 1})
	}
	return nil
}

func (s *Service) getUser(ctx context.Context, id string) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func toCore(rec *store.Message, sender *store.User) *core.Message {
	msg := &core.Message{
		ID:         rec.ID,
		Sender:     core.Sender{ID: core.UserID(rec.SenderID)},
		ReceiverID: core.UserID(rec.ReceiverID),
		Text:       rec.Text,
		Image:      rec.Image,
		Seen:       rec.Seen,
		CreatedAt:  rec.CreatedAt,
	}
	if sender != nil {
		msg.Sender.FullName = sender.FullName
		msg.Sender.ProfilePic = sender.ProfilePic
	}
	return msg
}
