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

	"github.com/upkeep-hq/upkeep/internal/actors"
	"github.com/upkeep-hq/upkeep/internal/app"
	"github.com/upkeep-hq/upkeep/internal/audit"
	"github.com/upkeep-hq/upkeep/internal/auth"
	"github.com/upkeep-hq/upkeep/internal/observability"
	"github.com/upkeep-hq/upkeep/internal/platform/cache"
	"github.com/upkeep-hq/upkeep/internal/platform/db"
	"github.com/upkeep-hq/upkeep/internal/requests"
	"github.com/upkeep-hq/upkeep/internal/shifts"
	"github.com/upkeep-hq/upkeep/jobs"
	"github.com/upkeep-hq/upkeep/report"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewQueueDispatcher(queueClient, logger)

	recorder := audit.NewRecorder(pool, logger)
	auditHandler := audit.NewHandler(logger, recorder)

	authService := auth.NewService(auth.NewRepository(pool))

	actorRepo := actors.NewRepository(pool, logger)
	authCache := actors.NewAuthCache(redisClient, cfg.AuthCacheTTL)
	actorService := actors.NewService(actorRepo, authCache, recorder, logger)
	actorHandler := actors.NewHandler(logger, actorService)

	shiftRepo := shifts.NewRepository(pool)
	shiftService := shifts.NewService(shiftRepo, recorder, notifier, logger)
	shiftHandler := shifts.NewHandler(logger, shiftService, actorService)

	requestRepo := requests.NewRepository(pool)
	requestService := requests.NewService(requestRepo, shiftService, recorder, notifier, logger)
	requestHandler := requests.NewHandler(logger, requestService, actorService)

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, recorder, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Auth:            authService,
		ActorsHandler:   actorHandler,
		ShiftsHandler:   shiftHandler,
		RequestsHandler: requestHandler,
		AuditHandler:    auditHandler,
		ReportHandler:   reportHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
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
