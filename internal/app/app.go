package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/auth"
	"github.com/vovakirdan/livepoll-server/internal/config"
	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/mirror"
	"github.com/vovakirdan/livepoll-server/internal/store"
	"github.com/vovakirdan/livepoll-server/internal/store/memory"
	"github.com/vovakirdan/livepoll-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/livepoll-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	history         store.HistoryStore
	mirror          *mirror.Mirror
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	history, err := openHistory(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithDefaultDuration(cfg.DefaultPollDuration),
		core.WithChatBacklog(cfg.ChatBacklog),
		core.WithRespondentPolicy(respondentPolicy(cfg.RespondentPolicy)),
	}

	var mir *mirror.Mirror
	if cfg.RedisAddr != "" {
		mir, err = mirror.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel, logger)
		if err != nil {
			_ = history.Close()
			return nil, fmt.Errorf("init mirror: %w", err)
		}
		opts = append(opts, core.WithMirror(mir))
	}

	if cfg.JWTSecret == config.Default().JWTSecret {
		logger.Warn().Msg("jwt_secret is the default value, set a real secret before exposing the server")
	}
	if cfg.TeacherPasscodeHash == "" {
		logger.Warn().Msg("teacher_passcode_hash is empty, teacher login is disabled")
	}

	authService := auth.NewService(cfg.TeacherPasscodeHash, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	hub := core.NewHub(history, opts...)
	server := transporthttp.NewServer(hub, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		history:         history,
		mirror:          mir,
		log:             logger,
	}, nil
}

func openHistory(cfg *config.Config, logger *zerolog.Logger) (store.HistoryStore, error) {
	if cfg.DatabasePath == "" {
		logger.Info().Int("limit", cfg.HistoryLimit).Msg("poll history kept in memory")
		return memory.New(cfg.HistoryLimit), nil
	}
	st, err := sqlite.New(cfg.DatabasePath, cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	return st, nil
}

func respondentPolicy(name string) core.RespondentPolicy {
	if name == config.PolicyShrink {
		return core.PolicyShrink
	}
	return core.PolicyFrozen
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()

	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else {
			runErr = <-serverErr
		}
	}

	// the hub closes any open poll before it stops, so history and mirror must outlive it
	stopHub()
	<-hubDone
	a.cleanup()
	return runErr
}

// cleanup closes the mirror and the history store.
func (a *App) cleanup() {
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close mirror")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
