package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/app"
	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/auth"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/contacts"
	"github.com/meridian-crm/meridian-crm/internal/customers"
	"github.com/meridian-crm/meridian-crm/internal/documents"
	"github.com/meridian-crm/meridian-crm/internal/platform/cache"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/projects"
	"github.com/meridian-crm/meridian-crm/internal/rewards"
	"github.com/meridian-crm/meridian-crm/internal/roles"
	"github.com/meridian-crm/meridian-crm/internal/shared"
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

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

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

	rolesService := roles.NewService(rolesRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, az)

	usersRepo := users.NewRepository(pool, saver)
	usersService := users.NewService(usersRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger)
	bulkHandler := users.NewBulkHandler(usersService, az, logger)
	bulkJobs := users.NewBulkJobStore(pool)
	usersHandler := users.NewHandler(logger, usersService, bulkHandler, bulkJobs, queue, az, cfg.BulkMaxItems)

	authService := auth.NewService(usersService)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, rolesRepo)

	customerRepo := customers.NewRepository(pool, saver)
	customerService := customers.NewService(customerRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger, events)
	customersHandler := customers.NewHandler(logger, customerService, az)

	contactRepo := contacts.NewRepository(pool, saver)
	contactService := contacts.NewService(contactRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger, events)
	contactsHandler := contacts.NewHandler(logger, contactService, az)

	projectRepo := projects.NewRepository(pool, saver)
	projectService := projects.NewService(projectRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger, events)
	projectsHandler := projects.NewHandler(logger, projectService, az)

	documentRepo := documents.NewRepository(pool, saver)
	documentService := documents.NewService(documentRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger, events)
	documentsHandler := documents.NewHandler(logger, documentService, az)

	rewardRepo := rewards.NewRepository(pool, saver)
	rewardService := rewards.NewService(rewardRepo, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger, events)
	rewardsHandler := rewards.NewHandler(logger, rewardService, az)

	webhooksHandler := webhooks.NewHandler(logger, webhookService, queue, az)

	auditService := audit.NewService(pool, cfg.ListCacheSliding, cfg.ListCacheAbsolute, logger)
	auditHandler := audit.NewHandler(logger, auditService, az)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		RolesHandler:     rolesHandler,
		UsersHandler:     usersHandler,
		CustomersHandler: customersHandler,
		ContactsHandler:  contactsHandler,
		ProjectsHandler:  projectsHandler,
		DocumentsHandler: documentsHandler,
		WebhooksHandler:  webhooksHandler,
		RewardsHandler:   rewardsHandler,
		AuditHandler:     auditHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
