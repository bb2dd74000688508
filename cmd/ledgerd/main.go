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
	"golang.org/x/sync/errgroup"

	"github.com/granite-erp/granite-ledger/internal/app"
	"github.com/granite-erp/granite-ledger/internal/coa"
	"github.com/granite-erp/granite-ledger/internal/glsummary"
	"github.com/granite-erp/granite-ledger/internal/ledger"
	"github.com/granite-erp/granite-ledger/internal/periods"
	"github.com/granite-erp/granite-ledger/internal/platform/cache"
	"github.com/granite-erp/granite-ledger/internal/platform/db"
	"github.com/granite-erp/granite-ledger/internal/shared"
	"github.com/granite-erp/granite-ledger/internal/stock"
	"github.com/granite-erp/granite-ledger/jobs"
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

	accountRepo := coa.NewRepository(dbpool)
	accountService := coa.NewService(accountRepo)
	accountHandler := coa.NewHandler(logger, accountService)

	mappingRepo := ledger.NewMappingRepository(dbpool)
	builder := ledger.NewBuilder(mappingRepo)

	numbering := ledger.NumberingPolicy{
		Prefix: cfg.LedgerNumberPrefix,
		Scope:  ledger.NumberScope(cfg.LedgerNumberScope),
	}
	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, numbering, fiscalZone)
	ledgerHandler := ledger.NewHandler(logger, builder, ledgerService, ledgerRepo)

	periodRepo := periods.NewRepository(dbpool)
	periodService := periods.NewService(periodRepo, auditLogger, periodLocker, fiscalZone)
	periodHandler := periods.NewHandler(logger, periodService)

	summaryRepo := glsummary.NewRepository(dbpool)
	summaryService := glsummary.NewService(summaryRepo)
	summaryHandler := glsummary.NewHandler(logger, summaryService)

	stockRepo := stock.NewRepository(dbpool)
	stockHandler := stock.NewHandler(logger, stockRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("build job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountHandler,
		LedgerHandler:   ledgerHandler,
		PeriodsHandler:  periodHandler,
		SummaryHandler:  summaryHandler,
		StockHandler:    stockHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
