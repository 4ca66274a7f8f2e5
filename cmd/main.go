package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/linguavoice/server/adapters/gemini"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/api"
	"github.com/satriahrh/linguavoice/server/internal/auth"
	"github.com/satriahrh/linguavoice/server/internal/config"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
	"github.com/satriahrh/linguavoice/server/internal/websocket"
	"github.com/satriahrh/linguavoice/server/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.DevelopmentSecret {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}

	provider, err := telemetry.Setup("linguavoice-server", cfg.Environment, logger)
	if err != nil {
		return err
	}

	// Initialize adapters
	generator, err := newSpeechGenerator(cfg, logger)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	// Initialize usecase services
	speech := usecase.NewSpeechService(generator, provider.Metrics, logger)

	// Audio of every session is streamed to its WebSocket clients
	hub := websocket.NewHub(cfg.PlaybackChunk, logger)

	sessions := usecase.NewSessionManager(speech, hub, usecase.Defaults{
		Language: cfg.DefaultLanguage,
		Voice:    cfg.DefaultVoice,
	}, provider.Metrics, logger)

	cleanup := usecase.NewSessionCleanupService(sessions, cfg.SessionIdleTimeout, cfg.SessionCleanupInterval, logger)
	cleanup.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Sessions: sessions,
		Hub:      hub,
		Tokens:   tokens,
		Metrics:  provider.Handler(),
		Defaults: usecase.Defaults{Language: cfg.DefaultLanguage, Voice: cfg.DefaultVoice},
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("Server started", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Wait for interrupt signal to gracefully shutdown the server
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		cleanup.Stop()
		sessions.CloseAll()

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down telemetry", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func newSpeechGenerator(cfg *config.Config, logger *zap.Logger) (repositories.SpeechGenerator, error) {
	if cfg.SpeechBackend == config.BackendMock {
		logger.Info("Using mock speech backend", zap.Duration("delay", cfg.MockSpeechDelay))
		return gemini.NewMockSpeechGenerator(logger, cfg.MockSpeechDelay), nil
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, every speech request will fail with a configuration error")
	}

	return gemini.NewSpeechClient(gemini.SpeechConfig{
		APIKey:     cfg.Gemini.APIKey,
		APIBaseURL: cfg.Gemini.APIBaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Model:      cfg.Gemini.Model,
		Timeout:    cfg.Gemini.Timeout,
	}, logger)
}
