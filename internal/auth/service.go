package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/yapyard-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrMissingDetails is returned when a required signup field is empty.
	ErrMissingDetails = errors.New("missing details")
	// ErrInvalidEmail is returned when the email is malformed.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnauthorized is returned when a token is missing or no longer maps to a user.
	ErrUnauthorized = errors.New("unauthorized")
)

// Uploader stores a profile picture and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, data string) (string, error)
	Discard(ctx context.Context, url string) error
}

// SignupInput carries the fields of a new account.
type SignupInput struct {
	FullName string
	Email    string
	Password string
	Bio      string
}

// ProfileInput carries an update of the editable profile fields.
// ProfilePic is raw image data; empty keeps the current picture.
type ProfileInput struct {
	FullName   string
	Bio        string
	ProfilePic string
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
	uploader  Uploader
}

// NewService creates a new authentication service. uploader may be nil, in
// which case profile pictures cannot be changed.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig, uploader Uploader) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
		uploader:  uploader,
	}
}

// Signup creates a user with a hashed password and returns it with a token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*store.User, string, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)
	bio := strings.TrimSpace(in.Bio)
	if fullName == "" || email == "" || in.Password == "" || bio == "" {
		return nil, "", ErrMissingDetails
	}
	if !strings.Contains(email, "@") {
		return nil, "", ErrInvalidEmail
	}
	hashedPassword, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	user := &store.User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		Bio:          bio,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a token to its user.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*store.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateProfile overwrites name and bio and, when given, uploads a new
// profile picture.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*store.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, ErrMissingDetails
	}

	var picURL string
	if in.ProfilePic != "" {
		if s.uploader == nil {
			return nil, errors.New("profile picture uploads are disabled")
		}
		url, err := s.uploader.Upload(ctx, in.ProfilePic)
		if err != nil {
			return nil, fmt.Errorf("upload profile picture: %w", err)
		}
		picURL = url
	}

	user, err := s.store.UpdateProfile(ctx, userID, fullName, strings.TrimSpace(in.Bio), picURL)
	if err != nil {
		if picURL != "" {
			// Best effort; the update error is what the caller needs.
			_ = s.uploader.Discard(context.WithoutCancel(ctx), picURL)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
