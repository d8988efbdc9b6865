package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imobot-backend/internal/config"
	"imobot-backend/internal/db"
	"imobot-backend/internal/dialogue"
	"imobot-backend/internal/intent"
	"imobot-backend/internal/server"
	"imobot-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	database, err := db.New(cfg.DBDriver, cfg.DataSource())
	if err != nil {
		logger.Error("failed to initialize database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("database connection established", "driver", cfg.DBDriver)

	if cfg.DBMigrate {
		if err := database.Migrate(); err != nil {
			logger.Error("database migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations completed")
	}

	classifier, err := newClassifier(cfg, logger)
	if err != nil {
		logger.Error("failed to load intent classifier", "error", err)
		os.Exit(1)
	}

	inventory := store.NewDatabaseStore(database)
	sessions := store.NewSessionStore(cfg.SessionCapacity, cfg.SessionTTL)
	engine := dialogue.NewEngine(inventory, logger)
	chat := dialogue.NewService(sessions, inventory, classifier, engine, logger)
	s := server.NewServer(cfg, chat, inventory, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("IMOBOT server listening", "addr", srv.Addr, "debug", cfg.Debug)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// newClassifier puts the remote model behind the circuit breaker. Without
// an API key only the local heuristics run.
func newClassifier(cfg config.Config, logger *slog.Logger) (intent.Extractor, error) {
	var remote intent.Extractor
	if cfg.DeepSeekAPIKey != "" {
		client := intent.NewRemoteClient(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL)
		r, err := intent.LoadRemote(cfg.IntentPromptsFile, client, cfg.DeepSeekModel)
		if err != nil {
			return nil, err
		}
		remote = r
	}
	return intent.NewBreaker(remote, intent.NewLocal(), intent.BreakerOptions{
		Timeout:          cfg.ClassifierTimeout,
		FailureThreshold: uint32(cfg.ClassifierThreshold),
		Cooldown:         cfg.ClassifierCooldown,
		Logger:           logger,
	}), nil
}
