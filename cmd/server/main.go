package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qapilot/backend/internal/ai"
	"github.com/qapilot/backend/internal/automation"
	"github.com/qapilot/backend/internal/config"
	"github.com/qapilot/backend/internal/conversation"
	"github.com/qapilot/backend/internal/db"
	"github.com/qapilot/backend/internal/events"
	httpapi "github.com/qapilot/backend/internal/http"
	"github.com/qapilot/backend/internal/hub"
	"github.com/qapilot/backend/internal/jira"
	"github.com/qapilot/backend/internal/testgen"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "qapilot-backend").Logger()

	ctx := context.Background()

	var store *db.Store
	if cfg.DatabaseURL != "" {
		store, err = db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate db")
		}
	} else {
		logger.Info().Msg("no database configured, browser automation disabled")
	}

	var generator ai.Generator
	if cfg.OpenAIAPIKey == "" {
		generator = &ai.MockGenerator{Response: "No generation service configured."}
		logger.Info().Msg("using mock generator")
	} else {
		generator = ai.Client{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIAPIKey}
	}

	svc := &testgen.Service{
		Generator: generator,
		Estimator: testgen.NewEstimator(),
		Logger:    logger,
	}
	fetcher := jira.NewClient(cfg.RequestTimeout, logger)
	registry := conversation.NewRegistry()
	wsHub := hub.New(logger)
	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer producer.Close()

	pool := automation.NewPool(automation.NewGenerator(generator), cfg.CodegenWorkers, logger)
	defer pool.Close()

	router := httpapi.Router(cfg, registry, fetcher, svc, store, pool, wsHub, producer, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
