package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/config"
	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/utils"
)

// submitTimeout bounds one relay submission. Submissions outlive the socket
// that sent them so a sender disconnecting mid-send still gets persisted.
const submitTimeout = 30 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub         *core.Hub
	relay       *core.Relay
	authService *auth.Service
	cfg         config.Config
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, relay *core.Relay, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, relay: relay, authService: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	userID, err := h.identify(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws identification failed")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewCompactID(), userID)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Info().Str("client_id", client.ID).Str("user_id", string(userID)).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("client_id", client.ID).Str("user_id", string(userID)).Msg("ws disconnected")
	conn.Close(status, reason)
}

// identify resolves the connection's user from ?token= or the Authorization
// header. With jwt_required off, ?userId= is trusted as is.
func (h *WSHandler) identify(r *stdhttp.Request) (core.UserID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r.Header.Get("Authorization"))
	}

	if token != "" {
		user, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			return "", err
		}
		return core.UserID(user.ID), nil
	}

	if !h.cfg.JWTRequired {
		if id := r.URL.Query().Get("userId"); id != "" {
			return core.UserID(id), nil
		}
	}
	return "", auth.ErrUnauthorized
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.MessagesPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeSendMessage:
			sub, err := inboundToSubmission(inbound)
			if err != nil {
				h.log.Warn().Err(err).Str("client_id", client.ID).Msg("failed to decode sendMessage")
				client.Send(&core.Event{
					Kind:  core.EventMessageError,
					Error: &core.CoreError{Code: core.ErrCodeBadRequest, Message: "malformed sendMessage payload"},
				})
				continue
			}
			if !limiter.allow() {
				client.Send(&core.Event{
					Kind:  core.EventMessageError,
					Error: &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages"},
				})
				continue
			}

			submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
			// Failures already reached the client as messageError.
			_, _ = h.relay.Submit(submitCtx, client.UserID, sub, client)
			cancel()

		case proto.InboundTypeGetOnlineUsers:
			online, err := h.hub.Online(ctx)
			if err != nil {
				return err
			}
			client.Send(&core.Event{Kind: core.EventOnlineUsers, Online: online})

		default:
			client.Send(&core.Event{
				Kind:  core.EventError,
				Error: &core.CoreError{Code: "invalid_message", Message: "unknown message type"},
			})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			// The hub stopped.
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
