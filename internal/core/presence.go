package core

// PresenceSink receives every presence snapshot after it has been broadcast.
// Publish is called from the hub goroutine and must not block on I/O.
type PresenceSink interface {
	Publish(online []UserID)
}

// broadcastPresence sends the full online set to every registered client,
// including the one that just joined. Slow clients miss the event; they will
// get the next full snapshot.
func (h *Hub) broadcastPresence() []UserID {
	online := h.registry.Identities()
	event := &Event{Kind: EventOnlineUsers, Online: online}

	for _, client := range h.registry.Clients() {
		if !client.Send(event) {
			h.log.Debug().Str("client_id", client.ID).Str("user_id", string(client.UserID)).
				Msg("presence event dropped")
		}
	}

	if h.sink != nil {
		h.sink.Publish(online)
	}
	return online
}
