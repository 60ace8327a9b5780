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
	"github.com/shopspring/decimal"

	"github.com/franferrer12/intramedia-system-sub001/internal/app"
	"github.com/franferrer12/intramedia-system-sub001/internal/audit"
	"github.com/franferrer12/intramedia-system-sub001/internal/catalog"
	"github.com/franferrer12/intramedia-system-sub001/internal/dispatch"
	"github.com/franferrer12/intramedia-system-sub001/internal/observability"
	"github.com/franferrer12/intramedia-system-sub001/internal/orders"
	"github.com/franferrer12/intramedia-system-sub001/internal/platform/cache"
	"github.com/franferrer12/intramedia-system-sub001/internal/platform/db"
	"github.com/franferrer12/intramedia-system-sub001/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGConnectTimeout)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPingTimeout)
	if err != nil {
		logger.Warn("redis unavailable, order cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

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
	dispatcher := dispatch.NewDispatcher(outboxStore, jobsClient, logger)

	ordersRepo := orders.NewRepository(pool)
	productCatalog := catalog.NewPostgresCatalog(pool)
	auditService := audit.NewService(audit.NewPostgresRepository(pool))
	ordersCache := orders.NewCache(redisClient, cfg.OrderCacheTTL)
	totals := orders.NewTotalsCalculator(decimal.NewFromFloat(cfg.OrderTaxRate))
	metrics := observability.NewMetrics()

	ordersService := orders.NewService(ordersRepo, productCatalog, dispatcher, auditService,
		ordersCache, totals, metrics, logger, cfg.OrderConflictRetry)
	ordersHandler := orders.NewHandler(logger, ordersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		OrdersHandler: ordersHandler,
		JobsHandler:   jobsHandler,
		Metrics:       metrics,
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
