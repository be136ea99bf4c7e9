// Package presence mirrors the hub's online set into Redis so processes
// outside the server can read who is connected.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/core"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
)

const (
	// DefaultSetKey holds the current online identities.
	DefaultSetKey = "yapyard:online"
	// DefaultChannel receives every snapshot as a JSON array.
	DefaultChannel = "yapyard:presence"

	writeTimeout = 3 * time.Second
)

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// RedisMirror implements core.PresenceSink. Publish only records the latest
// snapshot; Run writes it out, so a slow Redis coalesces snapshots instead of
// stalling the hub.
type RedisMirror struct {
	client  *redis.Client
	setKey  string
	channel string
	pending chan []core.UserID
	log     *zerolog.Logger
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisMirror wraps an existing client.
func NewRedisMirror(client *redis.Client, logger *zerolog.Logger) *RedisMirror {
	if logger == nil {
		logger = applog.Nop()
	}
	return &RedisMirror{
		client:  client,
		setKey:  DefaultSetKey,
		channel: DefaultChannel,
		pending: make(chan []core.UserID, 1),
		log:     logger,
	}
}

// Publish replaces any snapshot not yet written with this one.
func (m *RedisMirror) Publish(online []core.UserID) {
	snapshot := append([]core.UserID(nil), online...)
	for {
		select {
		case m.pending <- snapshot:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run writes snapshots until ctx is cancelled, then clears the online set.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			clearCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			if err := m.client.Del(clearCtx, m.setKey).Err(); err != nil {
				m.log.Warn().Err(err).Msg("clear presence mirror")
			}
			cancel()
			return
		case online := <-m.pending:
			if err := m.write(ctx, online); err != nil {
				m.log.Warn().Err(err).Int("online", len(online)).Msg("presence mirror write failed")
			}
		}
	}
}

// Online reads the mirrored set back.
func (m *RedisMirror) Online(ctx context.Context) ([]string, error) {
	members, err := m.client.SMembers(ctx, m.setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read online set: %w", err)
	}
	return members, nil
}

func (m *RedisMirror) write(ctx context.Context, online []core.UserID) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	members := make([]any, 0, len(online))
	ids := make([]string, 0, len(online))
	for _, id := range online {
		members = append(members, string(id))
		ids = append(ids, string(id))
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.setKey)
		if len(members) > 0 {
			pipe.SAdd(ctx, m.setKey, members...)
		}
		pipe.Publish(ctx, m.channel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

var _ core.PresenceSink = (*RedisMirror)(nil)
