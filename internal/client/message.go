// Package client is the terminal-side half of yapyard: it keeps the open
// conversation, unseen counters and presence in sync with the server's REST
// API and socket pushes.
package client

import (
	"time"

	"github.com/vovakirdan/yapyard-server/internal/proto"
)

// UserID is a normalized identity. Every message entering the client is
// reduced to one, whatever shape its senderId had on the wire.
type UserID string

// Message is a chat message as the client sees it.
type Message struct {
	ID               string
	SenderID         UserID
	SenderName       string
	SenderProfilePic string
	ReceiverID       UserID
	Text             string
	Image            string
	Seen             bool
	CreatedAt        time.Time
}

// Contact is another user in the sidebar.
type Contact struct {
	ID         UserID
	FullName   string
	Bio        string
	ProfilePic string
}

func messageFromPayload(p proto.MessagePayload) Message {
	return Message{
		ID:               p.ID,
		SenderID:         UserID(p.Sender.ID),
		SenderName:       p.Sender.FullName,
		SenderProfilePic: p.Sender.ProfilePic,
		ReceiverID:       UserID(p.ReceiverID),
		Text:             p.Text,
		Image:            p.Image,
		Seen:             p.Seen,
		CreatedAt:        p.CreatedAt,
	}
}

func messagesFromPayload(ps []proto.MessagePayload) []Message {
	out := make([]Message, 0, len(ps))
	for _, p := range ps {
		out = append(out, messageFromPayload(p))
	}
	return out
}

func contactFromPayload(p proto.UserPayload) Contact {
	return Contact{
		ID:         UserID(p.ID),
		FullName:   p.FullName,
		Bio:        p.Bio,
		ProfilePic: p.ProfilePic,
	}
}
