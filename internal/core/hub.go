package core

import (
	"context"

	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/yapyard-server/internal/log"
)

// Hub owns the connection registry. Every registry mutation, the presence
// broadcast that follows it, and every delivery lookup run on the hub
// goroutine in arrival order, so no locks guard the registry and no presence
// snapshot ever reflects a half-applied change.
type Hub struct {
	registry Registry
	sink     PresenceSink
	commands chan command
	done     chan struct{}
	log      *zerolog.Logger
}

// NewHub creates a hub around the given registry. A nil registry gets an
// in-memory one; a nil logger disables logging.
func NewHub(registry Registry, logger *zerolog.Logger) *Hub {
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	if logger == nil {
		logger = applog.Nop()
	}
	return &Hub{
		registry: registry,
		commands: make(chan command, 256),
		done:     make(chan struct{}),
		log:      logger,
	}
}

// SetPresenceSink installs a sink fed with every presence snapshot.
// Must be called before Run.
func (h *Hub) SetPresenceSink(sink PresenceSink) {
	h.sink = sink
}

// Run processes commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, client := range h.registry.Clients() {
				client.Close()
			}
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

// RegisterClient records the client as the live handle of its user and
// broadcasts presence.
func (h *Hub) RegisterClient(client *Client) {
	h.enqueue(command{kind: commandRegister, client: client})
}

// UnregisterClient drops the client's mapping (if it is still the current
// one) and broadcasts presence. The client is closed either way.
func (h *Hub) UnregisterClient(client *Client) {
	h.enqueue(command{kind: commandUnregister, client: client})
}

// Deliver pushes a persisted message to its receiver, if connected, and echoes
// it to the sender. origin is the connection that submitted it, if any; it
// receives the echo when the sender has no registered handle.
func (h *Hub) Deliver(msg *Message, origin *Client) {
	h.enqueue(command{kind: commandDeliver, message: msg, client: origin})
}

// Online returns the current online identities.
func (h *Hub) Online(ctx context.Context) ([]UserID, error) {
	reply := make(chan []UserID, 1)
	if !h.enqueue(command{kind: commandSnapshot, reply: reply}) {
		return nil, ErrHubStopped
	}
	select {
	case online := <-reply:
		return online, nil
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) enqueue(cmd command) bool {
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		if cmd.kind == commandUnregister && cmd.client != nil {
			cmd.client.Close()
		}
		return false
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case commandRegister:
		h.register(cmd.client)
	case commandUnregister:
		h.unregister(cmd.client)
	case commandDeliver:
		h.deliver(cmd.message, cmd.client)
	case commandSnapshot:
		cmd.reply <- h.registry.Identities()
	}
}

func (h *Hub) register(client *Client) {
	if prev, ok := h.registry.Lookup(client.UserID); ok && prev != client {
		h.log.Info().Str("user_id", string(client.UserID)).Str("client_id", client.ID).
			Str("previous_client_id", prev.ID).Msg("connection superseded")
	}
	h.registry.Register(client.UserID, client)
	online := h.broadcastPresence()
	h.log.Debug().Str("user_id", string(client.UserID)).Int("online", len(online)).Msg("client registered")
}

func (h *Hub) unregister(client *Client) {
	defer client.Close()

	current, ok := h.registry.Lookup(client.UserID)
	if !ok || current != client {
		// Duplicate disconnect, or a newer session owns the identity now.
		return
	}
	h.registry.Unregister(client.UserID)
	online := h.broadcastPresence()
	h.log.Debug().Str("user_id", string(client.UserID)).Int("online", len(online)).Msg("client unregistered")
}

func (h *Hub) deliver(msg *Message, origin *Client) {
	event := &Event{Kind: EventNewMessage, Message: msg}

	if receiver, ok := h.registry.Lookup(msg.ReceiverID); ok {
		if !receiver.Send(event) {
			h.log.Warn().Str("message_id", msg.ID).Str("user_id", string(msg.ReceiverID)).
				Msg("receiver buffer full, push dropped")
		}
	}

	echoTo, ok := h.registry.Lookup(msg.Sender.ID)
	if !ok {
		echoTo = origin
	}
	if echoTo != nil {
		// A sender whose connection went away simply misses the echo.
		echoTo.Send(event)
	}
}
