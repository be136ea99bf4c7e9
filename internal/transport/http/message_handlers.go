package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
)

// MessageHandlers provides the conversation endpoints.
type MessageHandlers struct {
	messages *messages.Service
	relay    *core.Relay
	log      *zerolog.Logger
}

// NewMessageHandlers creates message handlers.
func NewMessageHandlers(svc *messages.Service, relay *core.Relay, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{messages: svc, relay: relay, log: logger}
}

// SendMessageRequest is the body of a REST send.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// MessageResponse wraps one message.
type MessageResponse struct {
	NewMessage proto.MessagePayload `json:"newMessage"`
}

// HistoryResponse wraps a conversation.
type HistoryResponse struct {
	Messages []proto.MessagePayload `json:"messages"`
}

// Contacts lists the sidebar users with unseen counts.
// GET /api/messages/users
func (h *MessageHandlers) Contacts(c *gin.Context) {
	userID := currentUserID(c)
	users, unseen, err := h.messages.Contacts(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list contacts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := proto.ContactsResponse{
		Users:          make([]proto.UserPayload, 0, len(users)),
		UnseenMessages: unseen,
	}
	for _, u := range users {
		resp.Users = append(resp.Users, contactPayload(u))
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the conversation with a peer, marking the peer's messages seen.
// GET /api/messages/:id
func (h *MessageHandlers) History(c *gin.Context) {
	userID := currentUserID(c)
	peerID := c.Param("id")

	history, err := h.messages.History(c.Request.Context(), userID, peerID)
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		case errors.Is(err, messages.ErrSelfPeer):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("user_id", userID).Str("peer_id", peerID).Msg("failed to fetch history")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{Messages: proto.FromMessages(history)})
}

// MarkSeen flips one inbound message to seen.
// PUT /api/messages/mark/:id
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	userID := currentUserID(c)
	messageID := c.Param("id")

	if err := h.messages.MarkSeen(c.Request.Context(), userID, messageID); err != nil {
		if errors.Is(err, messages.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Str("message_id", messageID).Msg("failed to mark seen")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Send relays a message exactly like the socket path does.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID := currentUserID(c)
	ctx := context.WithoutCancel(c.Request.Context())
	msg, err := h.relay.Submit(ctx, core.UserID(userID), core.Submission{
		ReceiverID: core.UserID(c.Param("id")),
		Text:       req.Text,
		Image:      req.Image,
	}, nil)
	if err != nil {
		c.JSON(statusForCoreError(err), ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{NewMessage: proto.FromMessage(msg)})
}

func statusForCoreError(err error) int {
	var ce *core.CoreError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}
	switch ce.Code {
	case core.ErrCodeBadRequest, core.ErrCodeEmptyMessage:
		return http.StatusBadRequest
	case core.ErrCodeUnknownReceiver:
		return http.StatusNotFound
	case core.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case core.ErrCodeUploadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
