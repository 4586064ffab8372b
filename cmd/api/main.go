package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/config"
	"VibeHealth_V0.1/internal/database"
	"VibeHealth_V0.1/internal/events"
	"VibeHealth_V0.1/internal/health"
	"VibeHealth_V0.1/internal/recommendation"
	"VibeHealth_V0.1/internal/server"
	"VibeHealth_V0.1/internal/upload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish the requests it is currently handling.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	done <- true
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "vibehealth-api").Logger()

	// zerolog.Ctx falls back to this when a context carries no logger.
	zerolog.DefaultContextLogger = &log.Logger
}

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("could not apply database migrations")
		}
	}

	dbService, err := database.NewService(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer dbService.Close()

	aiClient := aiservice.NewClient(aiservice.Config{
		APIKey:      cfg.OpenRouterAPIKey,
		APIURL:      cfg.OpenRouterURL,
		VisionModel: cfg.VisionModel,
		TextModel:   cfg.TextModel,
		Timeout:     cfg.AIRequestTimeout,
		Referer:     cfg.AppReferer,
		Title:       cfg.AppTitle,
	}, log.Logger)
	if aiClient.Offline() {
		log.Warn().Msg("OPENROUTER_API_KEY is not set, model calls will return canned responses")
	}

	recommendations := recommendation.NewManager(
		recommendation.NewPostgresStore(dbService),
		aiClient,
		recommendation.Policy{
			WatermarkConfirmedOnly: cfg.WatermarkConfirmedOnly,
			HistoryLimit:           cfg.RecommendationHistory,
			FlightTimeout:          cfg.AIRequestTimeout + 30*time.Second,
		},
	)

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewAsyncPublisher(
			events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix),
			events.DefaultQueueSize,
		)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("publishing entry events to kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	uploads := upload.NewStore(cfg.UploadDir, cfg.MaxUploadBytes)
	log.Info().Str("dir", uploads.Dir()).Int64("max_bytes", cfg.MaxUploadBytes).Msg("storing uploads on local disk")

	handler := health.NewHandler(health.Deps{
		Logs:            dbService.Queries(),
		AI:              aiClient,
		Recommendations: recommendations,
		Uploads:         uploads,
		Events:          publisher,
		DailyGoal:       cfg.DailyCalorieGoal,
	})

	apiServer, err := server.NewServer(cfg, dbService, handler)
	if err != nil {
		log.Fatal().Err(err).Msg("could not build http server")
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(apiServer, done)

	log.Info().Str("addr", apiServer.Addr).Msg("http server listening")
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server error")
	}

	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
