package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/zap"

	"inboxpilot/internal/bot"
	"inboxpilot/internal/capture"
	"inboxpilot/internal/classifier"
	"inboxpilot/internal/draft"
	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/labels"
	"inboxpilot/internal/linear"
	"inboxpilot/internal/mail"
	"inboxpilot/internal/models"
	"inboxpilot/internal/storage"
	"inboxpilot/internal/triage"
	"inboxpilot/pkg/config"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	store, err := newDraftStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize draft storage",
			zap.Error(err),
			zap.String("backend", cfg.Storage.Backend))
	}
	defer store.Close()
	logger.Info("Draft storage ready", zap.String("backend", cfg.Storage.Backend))

	provider, err := mail.NewGmailProvider(ctx, mail.NewStaticTokenSource(cfg.Gmail.AccessToken), logger)
	if err != nil {
		logger.Fatal("Failed to initialize mail provider", zap.Error(err))
	}

	labelSet := labels.NewSet(cfg.Labels.Priority)

	invoker := classifier.NewOpenAIInvoker(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.ClassifierModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		cfg.Labels.AI,
		logger,
	)
	clf := classifier.New(invoker.Invoke, cfg.OpenAI.ClassifyRetries, cfg.Labels.Prefix, logger)

	triageSvc := triage.NewService(provider, clf, labelSet, cfg.Labels.Intake, logger)

	tracker := linear.NewClient(cfg.Linear.APIKey, cfg.Linear.TeamID, nil, logger)
	cleanup := capture.NewOpenAICleanup(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.CleanupModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	createIssue := func(ctx context.Context, in capture.IssueInput) (models.Issue, error) {
		return tracker.CreateIssue(ctx, linear.IssueCreateInput{
			Title:       in.Title,
			Description: in.Description,
			ProjectID:   in.ProjectID,
			StateID:     in.StateID,
		})
	}
	captures := capture.NewPipeline(
		cleanup.ProcessCapture,
		createIssue,
		cfg.Linear.FeedbackProjectID,
		cfg.Linear.FeedbackStateID,
		logger,
	)

	generator := draft.NewOpenAIGenerator(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.GeneratorModel,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	drafts := draft.NewPipeline(provider, store, labelSet, generator.Generate, logger)

	transcriber := bot.NewWhisperTranscriber(cfg.OpenAI.APIKey, logger)
	chat, err := bot.New(cfg.Telegram.Token, captures, transcriber.Transcribe, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat ingress", zap.Error(err))
	}

	srv := httpserver.NewServer(httpserver.Config{
		MailWebhookSecret: cfg.Webhook.MailSecret,
		ChatWebhookSecret: cfg.Telegram.WebhookSecret,
	}, triageSvc, drafts, captures, chat, logger)

	logger.Info("Server starting", zap.String("addr", cfg.Server.Addr))
	if err := srv.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}

func newDraftStore(cfg *config.Config) (storage.DraftStore, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Storage.Database.Host,
			Port:     cfg.Storage.Database.Port,
			User:     cfg.Storage.Database.User,
			Password: cfg.Storage.Database.Password,
			DBName:   cfg.Storage.Database.DBName,
			SSLMode:  cfg.Storage.Database.SSLMode,
		})
	case "redis":
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			TTL:      cfg.Storage.Redis.TTL,
		})
	case "memory", "":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
