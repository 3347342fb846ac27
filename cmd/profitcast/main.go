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

	"github.com/profitcast/profitcast/internal/app"
	"github.com/profitcast/profitcast/internal/audit"
	"github.com/profitcast/profitcast/internal/directory"
	"github.com/profitcast/profitcast/internal/identity"
	"github.com/profitcast/profitcast/internal/notify"
	"github.com/profitcast/profitcast/internal/observability"
	"github.com/profitcast/profitcast/internal/platform/cache"
	"github.com/profitcast/profitcast/internal/platform/db"
	"github.com/profitcast/profitcast/internal/vault"
	"github.com/profitcast/profitcast/internal/vault/cipher"
	"github.com/profitcast/profitcast/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()
	vaultMetrics := observability.NewVaultMetrics(metrics.Registerer())

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

	notifyRepo := notify.NewRepository(pool)
	notifyService := notify.NewService(notifyRepo, jobClient, logger)
	notifyHandler := notify.NewHandler(logger, notifyService)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, logger, vaultMetrics.AuditWriteErrors)
	auditHandler := audit.NewHandler(logger, auditService)

	vaultRepo := vault.NewRepository(pool)
	vaultService := vault.NewService(vaultRepo, engine, auditService, notifyService, logger, vaultMetrics.Reveals)

	userRepo := identity.NewRepository(pool)
	tokens := identity.NewTokenIssuer(cfg.JWTSecret, redisClient, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	identityService := identity.NewService(userRepo, tokens, vaultService, logger)
	authenticator := identity.Authenticator{Tokens: tokens, Users: userRepo, Logger: logger}
	authHandler := identity.NewHandler(logger, identityService, authenticator)

	vaultHandler := vault.NewHandler(logger, vaultService, authenticator)

	directoryService := directory.NewService(identityService, vaultService, notifyService, logger)
	directoryHandler := directory.NewHandler(logger, directoryService, authenticator)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    authenticator,
		AuthHandler:      authHandler,
		VaultHandler:     vaultHandler,
		AuditHandler:     auditHandler,
		NotifyHandler:    notifyHandler,
		DirectoryHandler: directoryHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
