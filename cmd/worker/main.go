package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"presencegate/internal/audit"
	"presencegate/internal/config"
	"presencegate/internal/jobs"
	"presencegate/internal/logging"
	"presencegate/internal/queue"
	"presencegate/internal/store"
)

// Worker records domain events in the audit trail and prunes stale refresh tokens.
func main() {
	cfg := config.Load()
	logger := logging.MustNew(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("QUEUE_BACKEND=memory cannot cross processes; use redis or kafka for the worker")
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	stores := store.Postgres(db.Client)

	var q queue.Queue
	if cfg.QueueBackend == "kafka" {
		kq := queue.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		defer kq.Close()
		q = kq
	} else {
		redisClient, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, "", logger)
	}

	scheduler := jobs.NewScheduler()
	if _, err := jobs.SchedulePrune(scheduler, cfg.PruneInterval, stores.Tokens, logger); err != nil {
		logger.Fatal("schedule prune job failed", zap.Error(err))
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Fatal("queue consume init failed", zap.Error(err))
	}

	logger.Info("worker started", zap.String("queue", cfg.QueueBackend), zap.Duration("prune_interval", cfg.PruneInterval))
	if err := audit.NewWorker(stores.Audit, logger).Run(ctx, messages); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	logger.Info("worker stopped")
}
