package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ss-insurance/insurance-manager/internal/app"
	"github.com/ss-insurance/insurance-manager/internal/clients"
	jobmetrics "github.com/ss-insurance/insurance-manager/internal/jobs"
	"github.com/ss-insurance/insurance-manager/internal/mailer"
	"github.com/ss-insurance/insurance-manager/internal/notifications"
	"github.com/ss-insurance/insurance-manager/internal/observability"
	"github.com/ss-insurance/insurance-manager/internal/platform/cache"
	"github.com/ss-insurance/insurance-manager/internal/platform/db"
	"github.com/ss-insurance/insurance-manager/internal/policies"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/renewals"
	"github.com/ss-insurance/insurance-manager/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	registry := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(registry.Registerer())
	feed := realtime.NewFeed(redisClient, logger)
	auditLogger := shared.NewAuditLogger(pool)

	clientService := clients.NewService(clients.NewRepository(pool), feed, auditLogger, logger)
	policyService := policies.NewService(policies.NewRepository(pool), clientService, feed, auditLogger, logger)
	notificationService := notifications.NewService(notifications.NewRepository(pool), feed, logger)

	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	renewalCfg := renewals.Config{WindowDays: cfg.RenewalWindowDays, Metrics: metrics, Logger: logger}
	if cfg.RenewalEmails {
		renewalCfg.Reminders = jobClient
	}
	renewalService := renewals.NewService(policyService, notificationService, renewalCfg)

	renewalJob := jobs.NewRenewalCheckJob(renewalService, logger, metrics)
	renewalJob.Locker = shared.NewRedisLocker(redisClient)
	mailJob := jobs.NewMailJob(mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger), logger, metrics)

	renewalTask, err := jobs.NewRenewalCheckTask(time.Time{})
	if err != nil {
		logger.Error("build renewal task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRenewalCheck, Handler: renewalJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RenewalCron, Task: renewalTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
		MetricsAddr: cfg.WorkerMetricsAddr,
		Metrics:     registry.Handler(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("renewal_cron", cfg.RenewalCron))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
