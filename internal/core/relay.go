package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/store"
)

// Uploader turns raw image data into a durable URL. Discard undoes an Upload
// whose message could not be saved.
type Uploader interface {
	Upload(ctx context.Context, data string) (string, error)
	Discard(ctx context.Context, url string) error
}

// Notifier is told about every message once it is persisted. Implementations
// must be best-effort and fast.
type Notifier interface {
	MessageCreated(ctx context.Context, msg *Message)
}

// Deliverer routes a persisted message to live connections.
type Deliverer interface {
	Deliver(msg *Message, origin *Client)
}

// RelayStore is the slice of storage the relay needs.
type RelayStore interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
	SaveMessage(ctx context.Context, msg *store.Message) error
}

// Relay validates, persists and routes submitted messages.
type Relay struct {
	store    RelayStore
	uploader Uploader
	hub      Deliverer
	notifier Notifier
	log      *zerolog.Logger
}

// NewRelay builds a relay. uploader may be nil, in which case image
// submissions fail with upload_failed.
func NewRelay(st RelayStore, uploader Uploader, hub Deliverer, logger *zerolog.Logger) *Relay {
	if logger == nil {
		logger = applog.Nop()
	}
	return &Relay{
		store:    st,
		uploader: uploader,
		hub:      hub,
		log:      logger,
	}
}

// SetNotifier installs an observer for persisted messages.
func (r *Relay) SetNotifier(n Notifier) {
	r.notifier = n
}

// Submit runs the persist-then-push pipeline for one message. On failure the
// submitting connection (origin, may be nil) gets a message error event and
// the receiver hears nothing. The returned error is always a *CoreError.
func (r *Relay) Submit(ctx context.Context, sender UserID, sub Submission, origin *Client) (*Message, error) {
	msg, err := r.submit(ctx, sender, sub)
	if err != nil {
		var ce *CoreError
		if !errors.As(err, &ce) {
			ce = coreError(ErrCodePersistFailed, "failed to send message", fmt.Errorf("%w: %w", ErrUpstream, err))
		}
		r.log.Warn().Err(ce.Err).Str("code", ce.Code).Str("user_id", string(sender)).
			Str("receiver_id", string(sub.ReceiverID)).Msg("message submission failed")
		if origin != nil {
			origin.Send(&Event{Kind: EventMessageError, Error: ce})
		}
		return nil, ce
	}

	r.hub.Deliver(msg, origin)
	if r.notifier != nil {
		r.notifier.MessageCreated(ctx, msg)
	}
	r.log.Debug().Str("message_id", msg.ID).Str("user_id", string(sender)).
		Str("receiver_id", string(msg.ReceiverID)).Msg("message relayed")
	return msg, nil
}

func (r *Relay) submit(ctx context.Context, sender UserID, sub Submission) (*Message, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" && sub.Image == "" {
		return nil, coreError(ErrCodeEmptyMessage, "message must contain text or an image", ErrEmptyMessage)
	}
	if sub.ReceiverID == "" {
		return nil, coreError(ErrCodeBadRequest, "receiverId is required", ErrBadRequest)
	}
	if sub.ReceiverID == sender {
		return nil, coreError(ErrCodeBadRequest, "cannot send a message to yourself", ErrBadRequest)
	}

	author, err := r.store.GetUserByID(ctx, string(sender))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeUnauthorized, "unknown sender", ErrBadRequest)
		}
		return nil, coreError(ErrCodePersistFailed, "failed to load sender", fmt.Errorf("%w: %w", ErrUpstream, err))
	}
	if _, err := r.store.GetUserByID(ctx, string(sub.ReceiverID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeUnknownReceiver, "unknown receiver", ErrUnknownReceiver)
		}
		return nil, coreError(ErrCodePersistFailed, "failed to load receiver", fmt.Errorf("%w: %w", ErrUpstream, err))
	}

	var imageURL string
	if sub.Image != "" {
		if r.uploader == nil {
			return nil, coreError(ErrCodeUploadFailed, "image upload is not available", ErrUpstream)
		}
		imageURL, err = r.uploader.Upload(ctx, sub.Image)
		if err != nil {
			return nil, coreError(ErrCodeUploadFailed, "failed to upload image", fmt.Errorf("%w: %w", ErrUpstream, err))
		}
	}

	record := &store.Message{
		SenderID:   string(sender),
		ReceiverID: string(sub.ReceiverID),
		Text:       text,
		Image:      imageURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.store.SaveMessage(ctx, record); err != nil {
		if imageURL != "" {
			r.discard(ctx, imageURL)
		}
		return nil, coreError(ErrCodePersistFailed, "failed to save message", fmt.Errorf("%w: %w", ErrUpstream, err))
	}

	return &Message{
		ID: record.ID,
		Sender: Sender{
			ID:         sender,
			FullName:   author.FullName,
			ProfilePic: author.ProfilePic,
		},
		ReceiverID: sub.ReceiverID,
		Text:       record.Text,
		Image:      record.Image,
		Seen:       record.Seen,
		CreatedAt:  record.CreatedAt,
	}, nil
}

func (r *Relay) discard(ctx context.Context, url string) {
	// The submit context may be the reason the save failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.uploader.Discard(ctx, url); err != nil {
		r.log.Warn().Err(err).Str("image", url).Msg("failed to discard orphaned image")
	}
}
