package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shanbot/shanbot/internal/biz/usecase"
	"github.com/shanbot/shanbot/internal/conf"
	"github.com/shanbot/shanbot/internal/data"
	"github.com/shanbot/shanbot/internal/server"
	"github.com/shanbot/shanbot/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	initLogger(cfg.Debug)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	// Initialize clients
	drafter := data.NewGeminiDrafter(
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second,
	)
	delivery := data.NewManyChatSender(
		cfg.ManyChat.APIToken,
		time.Duration(cfg.ManyChat.TimeoutSeconds)*time.Second,
	)

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Store.DBPath, drafter, delivery)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repositories")
	}
	defer repos.Close()
	log.Info().Str("db", cfg.Store.DBPath).Msg("store ready")

	// Initialize usecase and service layers
	promptUC := usecase.NewPromptBuilderUsecase(repos.Conversation, cfg.ToPromptConfig())
	policies := service.NewPolicyStore(cfg.InitialPolicy())

	sendTimeout := time.Duration(cfg.ManyChat.TimeoutSeconds) * time.Second
	gate := service.NewReviewGate(repos.Review, repos.Delivery, sendTimeout, log.Logger)

	draftTimeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second
	convSvc := service.NewConversationService(
		repos.Conversation, repos.Drafter, promptUC, gate, policies, draftTimeout, log.Logger,
	)
	gate.SetSentCallback(convSvc.RecordSent)

	scheduler := service.NewDebounceScheduler(cfg.BufferWindow(), convSvc.ProcessBatch, log.Logger)

	retention := time.Duration(cfg.Behavior.ReviewRetentionHours) * time.Hour
	maintenance := service.NewMaintenanceService(repos.Review, retention, log.Logger)
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start maintenance jobs")
	}

	// Initialize HTTP server
	srv := server.NewWebhookServer(
		scheduler, gate, policies,
		cfg.Server.Port, cfg.Server.WebhookSecret,
		log.Logger,
	)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		srv.Stop()
		scheduler.Stop()
		gate.Stop()
		maintenance.Stop()
	}()

	log.Info().
		Dur("bufferWindow", cfg.BufferWindow()).
		Bool("autoMode", cfg.InitialPolicy().Enabled).
		Msg("starting shanbot")
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

// initLogger configures the global zerolog logger
func initLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("LOG_FORMAT") != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
