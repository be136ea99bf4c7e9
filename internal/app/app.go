package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/yapyard-server/internal/auth"
	"github.com/vovakirdan/yapyard-server/internal/config"
	"github.com/vovakirdan/yapyard-server/internal/core"
	"github.com/vovakirdan/yapyard-server/internal/events"
	"github.com/vovakirdan/yapyard-server/internal/presence"
	"github.com/vovakirdan/yapyard-server/internal/service/messages"
	"github.com/vovakirdan/yapyard-server/internal/store"
	"github.com/vovakirdan/yapyard-server/internal/store/postgres"
	"github.com/vovakirdan/yapyard-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/yapyard-server/internal/transport/http"
	"github.com/vovakirdan/yapyard-server/internal/upload"
)

// App wires together storage, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	mirror          *presence.RedisMirror
	mirrorDone      chan struct{}
	redis           *redis.Client
	publisher       *events.Publisher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. Redis and NATS
// are optional; they are only dialled when configured.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("database initialized")

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	uploader, err := upload.NewDiskUploader(cfg.UploadDir, cfg.UploadBaseURL, cfg.MaxImageBytes, logger)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("init uploads: %w", err)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig, uploader)

	a.hub = core.NewHub(core.NewMemoryRegistry(), logger)
	relay := core.NewRelay(st, uploader, a.hub, logger)

	if cfg.RedisAddr != "" {
		client, err := presence.Connect(ctx, presence.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init presence mirror: %w", err)
		}
		a.redis = client
		a.mirror = presence.NewRedisMirror(client, logger)
		a.hub.SetPresenceSink(a.mirror)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("presence mirror enabled")
	}

	var seen messages.SeenPublisher
	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, "yapyard-server")
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("init events: %w", err)
		}
		a.publisher = events.NewPublisher(nc, logger)
		relay.SetNotifier(a.publisher)
		seen = a.publisher
		logger.Info().Str("url", cfg.NATSURL).Msg("message events enabled")
	}

	a.server = transporthttp.NewServer(transporthttp.Deps{
		Hub:      a.hub,
		Relay:    relay,
		Auth:     authService,
		Messages: messages.New(st, seen, logger),
	}, *cfg, logger)

	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		st, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "sqlite", "":
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	go a.hub.Run(runCtx)
	if a.mirror != nil {
		a.mirrorDone = make(chan struct{})
		go func() {
			defer close(a.mirrorDone)
			a.mirror.Run(runCtx)
		}()
	}

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stop()
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and broker connections.
func (a *App) cleanup() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.mirrorDone != nil {
		// Let the mirror clear the online set before the client goes away.
		<-a.mirrorDone
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
