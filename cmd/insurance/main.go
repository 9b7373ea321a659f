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

	"github.com/ss-insurance/insurance-manager/internal/app"
	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/clients"
	"github.com/ss-insurance/insurance-manager/internal/dashboard"
	jobmetrics "github.com/ss-insurance/insurance-manager/internal/jobs"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/observability"
	"github.com/ss-insurance/insurance-manager/internal/platform/cache"
	"github.com/ss-insurance/insurance-manager/internal/platform/db"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/rbac"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/renewals"
	"github.com/ss-insurance/insurance-manager/internal/shared"
	"github.com/ss-insurance/insurance-manager/internal/view"
	"github.com/ss-insurance/insurance-manager/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

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

	sessionManager := shared.NewSessionManager(redisClient, "insurance_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	feed := realtime.NewFeed(redisClient, logger)
	realtimeHandler := realtime.NewHandler(feed, logger)
	realtimeHandler.Streams = metrics
	realtimeHandler.Access = app.RealtimeScope
	auditLogger := shared.NewAuditLogger(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)
	rbacMiddleware := rbac.Middleware{Roles: authService, Logger: logger}

	clientService := clients.NewService(clients.NewRepository(dbpool), feed, auditLogger, logger)
	policyService := policies.NewService(policies.NewRepository(dbpool), clientService, feed, auditLogger, logger)
	notificationService := notifications.NewService(notifications.NewRepository(dbpool), feed, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authService.EnableConfirmation(auth.NewConfirmTokens(cfg.EmailConfirmSecret), jobClient, cfg.AppBaseURL)

	renewalCfg := renewals.Config{WindowDays: cfg.RenewalWindowDays, Metrics: jobMetrics, Logger: logger}
	if cfg.RenewalEmails {
		renewalCfg.Reminders = jobClient
	}
	renewalService := renewals.NewService(policyService, notificationService, renewalCfg)

	dashboardService := dashboard.NewService(clientService, policyService, notificationService, authService, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	renewalHandler := renewals.NewHandler(renewalService, renewals.NewTokenVerifier(cfg.ServiceRoleSecret), logger)
	renewalHandler.Locker = shared.NewRedisLocker(redisClient)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		RBACMiddleware:      rbacMiddleware,
		AuthHandler:         authHandler,
		DashboardHandler:    dashboard.NewHandler(logger, dashboardService, templates, csrfManager),
		ClientHandler:       clients.NewHandler(logger, clientService, templates, csrfManager),
		PolicyHandler:       policies.NewHandler(logger, policyService, clientService, templates, csrfManager),
		NotificationHandler: notifications.NewHandler(logger, notificationService),
		RealtimeHandler:     realtimeHandler,
		RenewalHandler:      renewalHandler,
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
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
