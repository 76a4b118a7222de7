package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfonso-av/cab432-a3/internal/domain/port"
	"github.com/alfonso-av/cab432-a3/internal/infra/config"
	"github.com/alfonso-av/cab432-a3/internal/infra/email"
	"github.com/alfonso-av/cab432-a3/internal/infra/ffmpeg"
	"github.com/alfonso-av/cab432-a3/internal/infra/metrics"
	miniostorage "github.com/alfonso-av/cab432-a3/internal/infra/minio"
	"github.com/alfonso-av/cab432-a3/internal/infra/postgres"
	"github.com/alfonso-av/cab432-a3/internal/infra/redisq"
	"github.com/alfonso-av/cab432-a3/internal/infra/tracing"
	"github.com/alfonso-av/cab432-a3/internal/usecase"
	"github.com/alfonso-av/cab432-a3/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting transcode-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOBucket,
		Region:    cfg.MinIORegion,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBucket(ctx), "ensure minio bucket")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	fatalOnErr(rdb.Ping(ctx).Err(), "connect to redis")

	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)

	hostname, _ := os.Hostname()
	queue, err := redisq.NewQueue(rdb, redisq.QueueConfig{
		Stream:            cfg.QueueStream,
		Group:             cfg.QueueGroup,
		Consumer:          hostname,
		DLQStream:         cfg.QueueDLQStream,
		VisibilityTimeout: cfg.VisibilityTimeout,
		MaxDeliveries:     cfg.MaxDeliveries,
	}, notifier, log)
	fatalOnErr(err, "create queue")

	statusPub := redisq.NewStatusPublisher(rdb, cfg.StatusStream)

	// Infra adapters
	store := postgres.NewJobStore(pool)
	transcoder := ffmpeg.NewTranscoder(cfg.FFmpegPath, cfg.FFprobePath, log)

	// Use case
	deadline := cfg.TranscodeDeadline
	profile := port.Profile(cfg.TranscodeProfile)
	if profile == port.ProfileBatch {
		// The batch profile has no per-run deadline; the queue's visibility
		// timeout bounds a stuck run.
		deadline = 0
	}
	executor := usecase.NewExecutor(store, storage, transcoder, statusPub, log,
		usecase.ExecutorConfig{
			TempDir:  cfg.TempDir,
			Profile:  profile,
			Deadline: deadline,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer := redisq.NewConsumer(queue, executor.Execute, redisq.ConsumerConfig{
		WorkerCount:  cfg.WorkerCount,
		ReceiveBatch: cfg.ReceiveBatch,
		ReceiveWait:  cfg.ReceiveWait,
	}, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("transcode-worker started, consuming messages")

	if err := consumer.Run(ctx); err != nil && err != context.Canceled {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("transcode-worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
