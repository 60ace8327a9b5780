package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/franferrer12/intramedia-system-sub001/internal/app"
	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
	"github.com/franferrer12/intramedia-system-sub001/internal/observability"
	"github.com/franferrer12/intramedia-system-sub001/internal/platform/db"
	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
	"github.com/franferrer12/intramedia-system-sub001/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGConnectTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	outboxStore := dispatch.NewStore(pool)
	relay := dispatch.NewDispatcher(outboxStore, jobsClient, logger)
	metrics := observability.NewMetrics()

	handlers := jobs.NewSideEffectHandlers(jobs.SideEffectConfig{
		Store:        outboxStore,
		Inventory:    dispatch.NewHTTPInventoryClient(cfg.InventoryURL),
		Finance:      dispatch.NewHTTPFinanceClient(cfg.FinanceURL),
		Audit:        audit.NewRecorder(pool),
		Keys:         shared.NewIdempotencyStore(pool),
		Relay:        relay,
		Metrics:      metrics,
		Logger:       logger,
		RelayAge:     cfg.OutboxRelayAge,
		KeyRetention: cfg.IdempotencyRetention,
	})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron: []jobs.CronRegistration{
			{Spec: "@every 1m", Task: jobs.NewOutboxRelayTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "@daily", Task: jobs.NewKeyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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
