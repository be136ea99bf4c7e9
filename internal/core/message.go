package core

import "time"

// UserID is the stable identity of a user, independent of any connection.
type UserID string

// Sender carries the display fields resolved for a message author.
type Sender struct {
	ID         UserID
	FullName   string
	ProfilePic string
}

// Message is the domain model for a persisted direct message.
type Message struct {
	ID         string
	Sender     Sender
	ReceiverID UserID
	Text       string
	Image      string
	Seen       bool
	CreatedAt  time.Time
}

// Submission is what a sender asks the relay to deliver. Image holds raw
// image data (a data URL) that still has to be uploaded.
type Submission struct {
	ReceiverID UserID
	Text       string
	Image      string
}
