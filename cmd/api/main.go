package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calling-tree-api/internal/application/escalation"
	"github.com/calling-tree-api/internal/application/progress"
	"github.com/calling-tree-api/internal/config"
	"github.com/calling-tree-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/calling-tree-api/internal/infrastructure/jwt"
	"github.com/calling-tree-api/internal/infrastructure/notifier"
	"github.com/calling-tree-api/internal/infrastructure/smtp"
	"github.com/calling-tree-api/internal/infrastructure/sns"
	transporthttp "github.com/calling-tree-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables, logger)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		logger.Warn().Err(err).Msg("JWT provider not available")
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback to email-only dispatch).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		logger.Warn().Err(err).Msg("SNS sender not available")
	}

	treeRepo := dynamo.NewTreeRepo(dynamoClient, cfg.DynamoTables.Trees, cfg.DynamoTables.TreeNodes)
	memberRepo := dynamo.NewMemberRepo(dynamoClient, cfg.DynamoTables.Members)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	logRepo := dynamo.NewLogRepo(dynamoClient, cfg.DynamoTables.NotificationLogs)

	engine := escalation.NewEngine(escalation.Deps{
		Trees:            treeRepo,
		Members:          memberRepo,
		Notifications:    notificationRepo,
		Logs:             logRepo,
		Notifier:         notifier.NewMultiChannel(smsSender, mailer, logger),
		Logger:           logger,
		DispatchAttempts: cfg.DispatchAttempts,
		DispatchTimeout:  cfg.DispatchTimeout,
	})

	// Re-arm escalation timers for notifications that were in flight when the
	// previous process stopped.
	if err := engine.Rehydrate(context.Background()); err != nil {
		logger.Error().Err(err).Msg("timer rehydration failed")
	}

	deps := &transporthttp.Deps{
		Engine:      engine,
		Progress:    progress.NewService(notificationRepo, logRepo, treeRepo),
		JWTProvider: jwtProvider,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	// Timers are persisted; stopping them here just silences the process.
	engine.Shutdown()
	logger.Info().Msg("server stopped")
}
