package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/profitcast/profitcast/internal/app"
	"github.com/profitcast/profitcast/internal/audit"
	"github.com/profitcast/profitcast/internal/identity"
	jobmetrics "github.com/profitcast/profitcast/internal/jobs"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/platform/db"
	"github.com/profitcast/profitcast/internal/shared"
	"github.com/profitcast/profitcast/internal/vault"
	"github.com/profitcast/profitcast/internal/vault/cipher"
	"github.com/profitcast/profitcast/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

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

	masterKey, err := cfg.MasterKey()
	if err != nil {
		logger.Error("vault master key", slog.Any("error", err))
		os.Exit(1)
	}
	engine, err := cipher.New(masterKey)
	if err != nil {
		logger.Error("init cipher engine", slog.Any("error", err))
		os.Exit(1)
	}

	idempotencyStore := shared.NewIdempotencyStore(pool)

	notifyRepo := notify.NewRepository(pool)
	// The worker persists notifications directly; no enqueuer, or expiry
	// warnings would loop back into the queue.
	notifyService := notify.NewService(notifyRepo, nil, logger)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger, nil)

	vaultRepo := vault.NewRepository(pool)
	vaultService := vault.NewService(vaultRepo, engine, auditService, notifyService, logger, nil)

	userRepo := identity.NewRepository(pool)

	jobMetrics := jobmetrics.NewMetrics(nil)

	emailHandler := jobs.NotifyEmailHandler{
		Users:   userRepo,
		Mailer:  jobs.SMTPMailer{Addr: cfg.SMTPAddr(), From: cfg.SMTPFrom},
		Logger:  logger,
		Metrics: jobMetrics,
	}
	expiryHandler := jobs.ExpiryScanHandler{
		Scanner: vaultService,
		Sink:    notifyService,
		Idem:    idempotencyStore,
		Window:  cfg.ExpiryScanWindow,
		Logger:  logger,
		Metrics: jobMetrics,
	}
	cleanupHandler := jobs.IdempotencyCleanupHandler{
		Idem:    idempotencyStore,
		Logger:  logger,
		Metrics: jobMetrics,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyEmail, Handler: emailHandler.Handle},
			{Type: jobs.TaskVaultExpiryScan, Handler: expiryHandler.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 6 * * *", Task: jobs.NewExpiryScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * 0", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
