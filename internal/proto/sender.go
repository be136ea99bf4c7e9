package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptySender is returned when a senderId field carries no identity.
var ErrEmptySender = errors.New("senderId has no identity")

// SenderRef is the senderId field of a message. Peers send it either as a raw
// identity string or as a populated {_id, fullName, profilePic} object; both
// decode into the same value so callers only ever compare ID.
type SenderRef struct {
	ID         string
	FullName   string
	ProfilePic string
}

type populatedSender struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// MarshalJSON always emits the populated form.
func (s SenderRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(populatedSender(s))
}

// UnmarshalJSON accepts a raw identity string or a populated object.
func (s *SenderRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrEmptySender
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decode senderId: %w", err)
		}
		if id == "" {
			return ErrEmptySender
		}
		*s = SenderRef{ID: id}
		return nil
	}

	var p populatedSender
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode senderId: %w", err)
	}
	if p.ID == "" {
		return ErrEmptySender
	}
	*s = SenderRef(p)
	return nil
}
