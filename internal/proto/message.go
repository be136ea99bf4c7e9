package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSendMessage    = "sendMessage"
	InboundTypeGetOnlineUsers = "getOnlineUsers"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventGetOnlineUsers = "getOnlineUsers"
	EventNewMessage     = "newMessage"
	EventMessageError   = "messageError"
)

// SendMessageData is a chat message submitted over the socket.
type SendMessageData struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// InboundEvent is Outbound as decoded by a client: Data stays raw until the
// event name is known.
type InboundEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// MessageErrorData is the payload of a messageError event.
type MessageErrorData struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// MessagePayload is a persisted message on the wire, both in pushes and in
// history responses.
type MessagePayload struct {
	ID         string    `json:"_id"`
	Sender     SenderRef `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserPayload is the public view of an account.
type UserPayload struct {
	ID         string    `json:"_id"`
	Email      string    `json:"email,omitempty"`
	FullName   string    `json:"fullName"`
	Bio        string    `json:"bio,omitempty"`
	ProfilePic string    `json:"profilePic,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ContactsResponse is returned by the contacts listing. UnseenMessages only
// lists peers with at least one unseen message.
type ContactsResponse struct {
	Users          []UserPayload  `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}
