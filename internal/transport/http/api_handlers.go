package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/proto"
	"github.com/vovakirdan/yapyard-server/internal/store"
	"github.com/vovakirdan/yapyard-server/internal/upload"
)

// APIHandlers provides the account endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Bio      string `json:"bio" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest represents the profile update body. ProfilePic is an
// image data URL; omit it to keep the current picture.
type UpdateProfileRequest struct {
	FullName   string `json:"fullName" binding:"required"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token    string            `json:"token"`
	UserData proto.UserPayload `json:"userData"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	UserData proto.UserPayload `json:"userData"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Signup handles account creation.
// POST /api/auth/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing details"})
		return
	}

	user, token, err := h.authService.Signup(c.Request.Context(), auth.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Bio:      req.Bio,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrMissingDetails),
			errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Msg("failed to sign up user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user signed up")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, UserData: userPayload(user)})
}

// Login handles user login.
// POST /api/auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, UserData: userPayload(user)})
}

// Check returns the authenticated user.
// GET /api/auth/check
func (h *APIHandlers) Check(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, UserResponse{UserData: userPayload(user)})
}

// UpdateProfile edits the caller's profile.
// PUT /api/auth/update-profile
func (h *APIHandlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID := currentUserID(c)
	user, err := h.authService.UpdateProfile(c.Request.Context(), userID, auth.ProfileInput{
		FullName:   req.FullName,
		Bio:        req.Bio,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingDetails),
			errors.Is(err, upload.ErrNotImage),
			errors.Is(err, upload.ErrMalformed),
			errors.Is(err, upload.ErrTooLarge):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Str("user_id", userID).Msg("failed to update profile")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, UserResponse{UserData: userPayload(user)})
}
