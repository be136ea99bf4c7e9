package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier suitable for users, messages and connections.
func NewID() string {
	return uuid.NewString()
}

// NewCompactID returns a random identifier without dashes, used for upload
// file names and connection ids.
func NewCompactID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

