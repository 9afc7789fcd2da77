package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/errors"

	"github.com/kova98/reddit-digest/config"
	"github.com/kova98/reddit-digest/data"
	"github.com/kova98/reddit-digest/data/repos"
	"github.com/kova98/reddit-digest/metrics"
	"github.com/kova98/reddit-digest/notifiers"
	"github.com/kova98/reddit-digest/pipeline"
	"github.com/kova98/reddit-digest/sources"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	opts := slog.HandlerOptions{Level: cfg.LogLevel}
	runID := uuid.New()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &opts)).With("run_id", runID.String())
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	logger.Info("starting run", "config", cfg)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer cleanup()

	m := metrics.New(cfg.Subreddit)
	deps.Metrics = m

	p := pipeline.New(deps, pipeline.Options{
		RunID:        runID,
		Subreddit:    cfg.Subreddit,
		ListingURL:   sources.ListingURL(cfg.RedditAPIURL, cfg.Subreddit),
		OutputDir:    cfg.OutputDir,
		OutputPrefix: cfg.OutputPrefix,
		Recipient:    cfg.ReceiverEmail,
		DiscordMode:  cfg.DiscordMode,
	})

	started := time.Now()
	result, err := p.Run(ctx)
	m.RunFinished(started, err == nil)
	pushMetrics(cfg, m, logger)

	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			logger.Error("run failed", "stage", stageErr.Stage, "error", stageErr.Err)
		} else {
			logger.Error("run failed", "error", err)
		}
		return 1
	}

	logger.Info("run complete", "posts", len(result.Table), "output", result.OutputPath, "elapsed_ms", time.Since(started).Milliseconds())
	return 0
}

func buildDeps(cfg config.AppConfig, logger *slog.Logger) (pipeline.Deps, func(), error) {
	cleanup := func() {}

	redditHTTP, err := sources.NewHTTPClient(cfg.ProxyURL, cfg.HTTPTimeout, cfg.UserAgent)
	if err != nil {
		return pipeline.Deps{}, cleanup, errors.Wrap(err, "create reddit http client")
	}
	reddit := sources.NewRedditClient(logger.With("component", "reddit"), redditHTTP, cfg.RedditAuthURL, cfg.UserAgent, sources.RedditCredentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserName:     cfg.UserName,
		Password:     cfg.Password,
	})

	deps := pipeline.Deps{
		Logger:  logger,
		Auth:    reddit,
		Fetcher: reddit,
	}

	if cfg.EmailEnabled() {
		deps.Mailer = notifiers.NewMailer(
			logger.With("component", "email"),
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SenderEmail,
			cfg.EmailPassword,
			cfg.HTTPTimeout,
		)
	}

	if cfg.DiscordEnabled() {
		deps.Discord = notifiers.NewDiscord(
			logger.With("component", "discord"),
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.DiscordWebhook,
			cfg.DiscordRate,
		)
	}

	if cfg.ArchiveEnabled() {
		db, err := data.Open(cfg.ArchiveDriver, cfg.ArchiveDSN)
		if err != nil {
			return pipeline.Deps{}, cleanup, errors.Wrap(err, "open archive")
		}
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close archive connection", "error", err)
			}
		}
		deps.Archive = repos.NewPostRepo(db)
	}

	return deps, cleanup, nil
}

func pushMetrics(cfg config.AppConfig, m *metrics.Metrics, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := m.Push(ctx, cfg.PushgatewayURL); err != nil {
		logger.Warn("failed to push metrics", "error", err)
	}
}
