package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
)

const minSearchLen = 3

// UserHandlers provides HTTP handlers for user lookup.
type UserHandlers struct {
	messages *messages.Service
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(svc *messages.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		messages: svc,
		log:      logger,
	}
}

// UsersResponse wraps a user list.
type UsersResponse struct {
	Users []proto.UserPayload `json:"users"`
}

// SearchUsers handles searching other users by name.
// GET /api/users/search?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	trimmed := strings.TrimSpace(c.Query("q"))
	if len([]rune(trimmed)) < minSearchLen {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 3 characters"})
		return
	}

	userID := currentUserID(c)
	users, err := h.messages.SearchContacts(c.Request.Context(), userID, trimmed)
	if err != nil {
		h.log.Error().Err(err).Str("query", trimmed).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := UsersResponse{Users: make([]proto.UserPayload, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, contactPayload(u))
	}
	c.JSON(http.StatusOK, resp)
}
