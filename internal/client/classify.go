package client

// Outcome says what the store does with a pushed message.
type Outcome int

const (
	// AppendToOpen: the message comes from the open conversation's peer. It
	// joins the view and gets marked seen.
	AppendToOpen Outcome = iota + 1
	// AppendAsSelf: an echo of the local user's own send. It joins the view
	// and never touches unseen counters.
	AppendAsSelf
	// IncrementUnseen: anything else bumps the sender's unseen counter.
	IncrementUnseen
)

func (o Outcome) String() string {
	switch o {
	case AppendToOpen:
		return "append_to_open"
	case AppendAsSelf:
		return "append_as_self"
	case IncrementUnseen:
		return "increment_unseen"
	default:
		return "unknown"
	}
}

// Classify decides where a pushed message goes. The checks run in a fixed
// order: open peer first, then self, then unseen. openPeer is empty when no
// conversation is open.
func Classify(self, openPeer UserID, msg Message) Outcome {
	switch {
	case openPeer != "" && msg.SenderID == openPeer:
		return AppendToOpen
	case msg.SenderID == self:
		return AppendAsSelf
	default:
		return IncrementUnseen
	}
}
