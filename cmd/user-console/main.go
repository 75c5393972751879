// Command user-console serves the user listing console in front of the
// user API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/user-console/internal/config"
	"github.com/Sternrassler/user-console/internal/web"
	"github.com/Sternrassler/user-console/pkg/client"
	"github.com/Sternrassler/user-console/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	sessionPruneEvery  = time.Minute
	shutdownTimeout    = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("User console failed")
	}
}

// app wires the client, optional Redis and the web server together.
type app struct {
	redis  *redis.Client
	client *client.Client
	server *web.Server
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}

	clientCfg := client.DefaultConfig(cfg.API.BaseURL)
	clientCfg.UserAgent = cfg.API.UserAgent
	clientCfg.Timeout = cfg.API.Timeout
	clientCfg.RateLimit = cfg.API.RateLimit
	clientCfg.Retry.MaxAttempts = cfg.API.MaxRetries

	if cfg.RedisEnabled() {
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
		}
		clientCfg.Redis = a.redis
		logger.Info().Str("addr", opts.Addr).Int("rate_limit", cfg.API.RateLimit).Msg("Redis cache enabled")
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create user API client: %w", err)
	}
	a.client = apiClient

	srv, err := web.NewServer(apiClient, web.DefaultConfig(), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create web server: %w", err)
	}
	a.server = srv

	return a, nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go pruneSessions(ctx, a.server.Sessions(), logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.ListenAddr).
			Str("user_api", cfg.API.BaseURL).
			Msg("Starting user console")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down user console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func pruneSessions(ctx context.Context, sessions *web.Sessions, logger zerolog.Logger) {
	ticker := time.NewTicker(sessionPruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(sessionIdleTimeout); n > 0 {
				logger.Debug().Int("removed", n).Int("active", sessions.Len()).Msg("Pruned idle sessions")
			}
		}
	}
}
