package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/UsamaMalikDev/Task-App/internal/cache"
	"github.com/UsamaMalikDev/Task-App/internal/config"
	"github.com/UsamaMalikDev/Task-App/internal/handler"
	"github.com/UsamaMalikDev/Task-App/internal/model"
	"github.com/UsamaMalikDev/Task-App/internal/query"
	"github.com/UsamaMalikDev/Task-App/internal/repo"
	"github.com/UsamaMalikDev/Task-App/internal/service"
	"github.com/UsamaMalikDev/Task-App/internal/worker"
	"github.com/UsamaMalikDev/Task-App/migrations"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file")
	sweepOnce := pflag.Bool("sweep-once", false, "run one overdue sweep and exit")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set up the logger
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open task store", zap.Error(err))
	}
	defer closeStore()

	listCache := cache.New[model.TaskPage](cfg.Cache.TTL, logger)
	taskService := service.NewTaskService(store, listCache, logger, service.Options{
		Limits:   query.Limits{Default: cfg.Query.DefaultLimit, Max: cfg.Query.MaxLimit},
		CacheTTL: cfg.Cache.TTL,
	})
	scheduler := worker.NewOverdueScheduler(store, taskService, logger, cfg.Scheduler.Interval)

	if *sweepOnce {
		record, err := scheduler.RunOnce(ctx)
		if err != nil {
			logger.Fatal("Overdue sweep failed", zap.Error(err))
		}
		logger.Info("Overdue sweep finished", zap.Int("flagged", len(record.TaskIDs)))
		return
	}

	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	taskHandler := handler.NewTaskHandler(taskService, scheduler, logger)

	srv := http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler.NewRouter(taskHandler, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
	logger.Info("Server stopped successfully!")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repo.TaskRepository, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory task store; data is lost on restart")
		return repo.NewMemoryTaskRepo(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Successfully connected to the Database!")

	if cfg.Migrate {
		if err := migrations.Up(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return repo.NewTaskRepo(pool), pool.Close, nil
}
