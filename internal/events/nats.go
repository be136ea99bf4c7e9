// Package events publishes message lifecycle notifications to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/core"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
	"github.com/vovakirdan/yapyard-server/internal/proto"
)

const (
	SubjectMessageCreated = "yapyard.message.created"
	SubjectMessageSeen    = "yapyard.message.seen"
)

// SeenNotice is published when messages flip to seen. MessageID is set for
// single marks; bulk marks from a history fetch carry PeerID and Count.
type SeenNotice struct {
	ViewerID  string    `json:"viewerId"`
	PeerID    string    `json:"peerId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Count     int64     `json:"count"`
	At        time.Time `json:"at"`
}

// Publisher sends events on a NATS connection. Publishing is best-effort:
// failures are logged and dropped.
type Publisher struct {
	nc  *nats.Conn
	log *zerolog.Logger
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NewPublisher wraps a connection.
func NewPublisher(nc *nats.Conn, logger *zerolog.Logger) *Publisher {
	if logger == nil {
		logger = applog.Nop()
	}
	return &Publisher{nc: nc, log: logger}
}

// MessageCreated implements core.Notifier.
func (p *Publisher) MessageCreated(_ context.Context, msg *core.Message) {
	p.publish(SubjectMessageCreated, proto.FromMessage(msg))
}

// MessagesSeen reports a seen flip.
func (p *Publisher) MessagesSeen(_ context.Context, notice SeenNotice) {
	if notice.At.IsZero() {
		notice.At = time.Now().UTC()
	}
	p.publish(SubjectMessageSeen, notice)
}

// Close flushes pending publishes and closes the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("drain nats connection")
	}
}

func (p *Publisher) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("encode event")
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

var _ core.Notifier = (*Publisher)(nil)
