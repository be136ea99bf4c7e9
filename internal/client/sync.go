package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SeenAPI flips a message's seen flag on the server.
type SeenAPI interface {
	MarkSeen(ctx context.Context, messageID string) error
}

// Synchronizer issues mark-seen calls in the background. Calls are
// fire-and-forget: failures are logged and never retried, and a full queue
// drops the request instead of blocking the caller.
type Synchronizer struct {
	api     SeenAPI
	timeout time.Duration
	logger  *zerolog.Logger

	queue chan string
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

const defaultSeenTimeout = 10 * time.Second

// NewSynchronizer starts workers goroutines consuming a queue of the given size.
func NewSynchronizer(api SeenAPI, workers, queueSize int, logger *zerolog.Logger) *Synchronizer {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Synchronizer{
		api:     api,
		timeout: defaultSeenTimeout,
		logger:  logger,
		queue:   make(chan string, queueSize),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("seen synchronizer started")
	return s
}

func (s *Synchronizer) worker(id int) {
	defer s.wg.Done()
	for messageID := range s.queue {
		s.markOne(id, messageID)
	}
}

func (s *Synchronizer) markOne(worker int, messageID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Int("worker_id", worker).Interface("panic", r).Str("message_id", messageID).Msg("mark seen panic recovered")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.api.MarkSeen(ctx, messageID); err != nil {
		s.logger.Warn().Err(err).Str("message_id", messageID).Msg("mark seen failed")
	}
}

// MarkSeen queues messageID. It reports false when the request was dropped.
func (s *Synchronizer) MarkSeen(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || messageID == "" {
		return false
	}
	select {
	case s.queue <- messageID:
		return true
	default:
		s.logger.Warn().Str("message_id", messageID).Msg("mark seen queue full, dropping")
		return false
	}
}

// Shutdown stops accepting requests and waits for the queued ones.
func (s *Synchronizer) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}
