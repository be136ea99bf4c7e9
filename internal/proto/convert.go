package proto

import "github.com/vovakirdan/yapyard-server/internal/core"

// FromMessage converts a relayed message to its wire form.
func FromMessage(msg *core.Message) MessagePayload {
	return MessagePayload{
		ID: msg.ID,
		Sender: SenderRef{
			ID:         string(msg.Sender.ID),
			FullName:   msg.Sender.FullName,
			ProfilePic: msg.Sender.ProfilePic,
		},
		ReceiverID: string(msg.ReceiverID),
		Text:       msg.Text,
		Image:      msg.Image,
		Seen:       msg.Seen,
		CreatedAt:  msg.CreatedAt,
	}
}

// FromMessages converts a slice, never returning nil.
func FromMessages(msgs []*core.Message) []MessagePayload {
	out := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromMessage(m))
	}
	return out
}

// OnlineIDs converts a presence snapshot.
func OnlineIDs(online []core.UserID) []string {
	out := make([]string, 0, len(online))
	for _, id := range online {
		out = append(out, string(id))
	}
	return out
}
