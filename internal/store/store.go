package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user or message does not exist
	// (or is not visible to the caller).
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("already exists")
)

// User represents an account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Bio          string
	ProfilePic   string
	CreatedAt    time.Time
}

// Message represents a persisted direct message. Everything except Seen is
// immutable after creation.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Image      string // durable URL of an uploaded image
	Seen       bool
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user. ID and CreatedAt are assigned when empty.
	// Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile overwrites full name and bio; profilePic is only
	// replaced when non-empty.
	UpdateProfile(ctx context.Context, id, fullName, bio, profilePic string) (*User, error)

	// ListUsersExcept lists every user but the given one, ordered by name.
	ListUsersExcept(ctx context.Context, id string) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message. ID and CreatedAt are assigned when empty.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a single message.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListConversation returns every message exchanged between a and b in
	// creation order.
	ListConversation(ctx context.Context, a, b string) ([]*Message, error)

	// FetchHistory marks every unseen message from peer to viewer as seen and
	// returns the whole conversation, atomically. The returned count is the
	// number of messages flipped.
	FetchHistory(ctx context.Context, viewerID, peerID string) ([]*Message, int64, error)

	// MarkSeen flips a single message to seen on behalf of its receiver.
	// Reports whether the flag changed; ErrNotFound if the message does not
	// exist or receiverID is not its receiver.
	MarkSeen(ctx context.Context, id, receiverID string) (bool, error)

	// CountUnseenBySender returns, per sender, how many messages addressed to
	// receiverID are still unseen. Senders with zero are omitted.
	CountUnseenBySender(ctx context.Context, receiverID string) (map[string]int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
