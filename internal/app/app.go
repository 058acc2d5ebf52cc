package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/shakai-quiz/internal/config"
	"github.com/gokatarajesh/shakai-quiz/internal/logging"
	"github.com/gokatarajesh/shakai-quiz/internal/question"
	"github.com/gokatarajesh/shakai-quiz/internal/quiz"
	"github.com/gokatarajesh/shakai-quiz/internal/server"
	ws "github.com/gokatarajesh/shakai-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (session store, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	hub   *ws.Hub
	http  *http.Server
}

// New bootstraps the logger, session store, question catalog and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	var (
		store       quiz.Store
		pinger      server.Pinger
		redisClient *redis.Client
	)
	switch cfg.Session.Store {
	case "redis":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		redisStore := quiz.NewRedisStore(redisClient, cfg.Session.TTL, cfg.Session.LockTTL, logger)
		if err := redisStore.Ping(ctx); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store, pinger = redisStore, redisStore
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis session store ready")
	default:
		store = quiz.NewMemoryStore(cfg.Session.TTL)
		logger.Warn().Msg("using in-memory session store; sessions are lost on restart")
	}

	files := cfg.Quiz.DatasetFiles()
	datasets := make([]question.Dataset, 0, len(files))
	for _, f := range files {
		datasets = append(datasets, question.Dataset{Name: f.Name, File: f.File})
	}
	catalog := question.NewCatalog(os.DirFS(cfg.Quiz.DatasetDir), datasets, question.LoadOptions{
		RequireField: cfg.Quiz.RequireFieldColumn,
	})

	policy, err := quiz.ParseRetryPolicy(cfg.Quiz.RetryPolicy)
	if err != nil {
		return nil, err
	}

	quizSvc := quiz.NewService(store, catalog, quiz.NewMetrics(prometheus.DefaultRegisterer), quiz.ServiceOptions{
		Policy:       policy,
		PresetCounts: cfg.Quiz.PresetCounts,
		RequireField: cfg.Quiz.RequireFieldColumn,
		AutoAdvance:  cfg.Quiz.AutoAdvance,
		Seed:         cfg.Quiz.RandomSeed,
		Location:     cfg.Location(),
	}, logger)

	cookies := quiz.NewCookieStore([]byte(cfg.Session.CookieSecret), cfg.Session.TTL, cfg.Env == "production")

	wsHub := ws.NewHub(logger)
	quizHTTP := quiz.NewHTTPHandlers(quizSvc, cookies, quiz.HTTPOptions{
		CookieName:     cfg.Session.CookieName,
		MaxUploadBytes: cfg.Quiz.MaxUploadBytes,
	}, logger)
	quizWS := quiz.NewWSHandler(quizSvc, quizHTTP, wsHub, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pinger, quizHTTP, quizWS.HandleWebSocket)

	return &Application{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		hub:    wsHub,
		http:   apiServer,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// hijacked WebSocket connections are not closed by Shutdown
	a.hub.Close()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
