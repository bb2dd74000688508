package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/granite-erp/granite-ledger/internal/app"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/platform/cache"
	"github.com/granite-erp/granite-ledger/internal/platform/db"
	"github.com/granite-erp/granite-ledger/internal/shared"
	"github.com/granite-erp/granite-ledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	fiscalZone := cfg.FiscalLocation()
	auditLogger := shared.NewAuditLogger(dbpool)
	periodLocker := shared.NewPeriodLocker(redisClient, 2*time.Minute)

	periodRepo := periods.NewRepository(dbpool)
	periodService := periods.NewService(periodRepo, auditLogger, periodLocker, fiscalZone)

	summaryRepo := glsummary.NewRepository(dbpool)
	summaryService := glsummary.NewService(summaryRepo)

	checker := jobs.NewIntegrityChecker(periodService, summaryService, logger)

	integrityTask, err := jobs.NewIntegrityTask(jobs.IntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: checker.HandleIntegrityTask},
			{Type: jobs.TaskSummaryRebuild, Handler: checker.HandleRebuildTask},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("cron", cfg.IntegrityCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exit", slog.Any("error", err))
		os.Exit(1)
	}
}
