package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/cache"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/roles"
	"github.com/meridian-crm/meridian-crm/internal/users"
	"github.com/meridian-crm/meridian-crm/internal/webhooks"
	"github.com/meridian-crm/meridian-crm/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	saver := audit.NewSaver(pool)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	rolesRepo := roles.NewRepository(pool, saver)
	az := authz.Middleware{Source: rolesRepo, Logger: logger}

	webhookRepo := webhooks.NewRepository(pool, saver)
	webhookService := webhooks.NewService(webhookRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger)
	events := webhooks.NewPublisher(webhookService, queue, logger)
	dispatcher := webhooks.NewDispatcher(webhookRepo, redisClient, cfg.WebhookTimeout, logger)

	usersRepo := users.NewRepository(pool, saver)
	usersService := users.NewService(usersRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger)
	bulkHandler := users.NewBulkHandler(usersService, az, logger)
	bulkJobs := users.NewBulkJobStore(pool)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		BulkUsers: jobs.NewBulkUsersJob(bulkJobs, bulkHandler, events, logger),
		Delivery:  jobs.NewWebhookDeliveryJob(dispatcher, logger),
	})

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
