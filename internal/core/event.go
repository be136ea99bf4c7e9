package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventOnlineUsers carries the full set of online identities.
	EventOnlineUsers EventKind = iota
	// EventNewMessage carries a persisted message to its receiver and sender.
	EventNewMessage
	// EventMessageError tells the sender its submission failed.
	EventMessageError
	// EventError notifies a client about a protocol-level error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOnlineUsers:
		return "online_users"
	case EventNewMessage:
		return "new_message"
	case EventMessageError:
		return "message_error"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Online  []UserID // EventOnlineUsers
	Message *Message // EventNewMessage
	Error   *CoreError
}
