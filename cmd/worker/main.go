package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/infra/config"
	"github.com/emovid/emovid-analysis-service/internal/infra/deepface"
	"github.com/emovid/emovid-analysis-service/internal/infra/email"
	"github.com/emovid/emovid-analysis-service/internal/infra/export"
	"github.com/emovid/emovid-analysis-service/internal/infra/metrics"
	miniostorage "github.com/emovid/emovid-analysis-service/internal/infra/minio"
	"github.com/emovid/emovid-analysis-service/internal/infra/postgres"
	"github.com/emovid/emovid-analysis-service/internal/infra/rabbitmq"
	"github.com/emovid/emovid-analysis-service/internal/infra/tracing"
	"github.com/emovid/emovid-analysis-service/internal/infra/video"
	"github.com/emovid/emovid-analysis-service/internal/usecase"
	"github.com/emovid/emovid-analysis-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting emovid-analysis-service")

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
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ResultBucket: cfg.MinIOResultBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	exporter, err := export.NewExporter(cfg.AnalysisDir)
	fatalOnErr(err, "create exporter")
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use cases
	analyzeVideo := usecase.NewAnalyzeVideoUseCase(
		video.NewOpener(),
		deepface.NewFactory(cfg.DeepFaceURL, cfg.DetectorBackend),
		exporter,
		log,
		usecase.AnalyzeVideoConfig{
			PoolSize:                cfg.EffectivePoolSize(),
			DetectorBackend:         cfg.DetectorBackend,
			FaceConfidenceThreshold: cfg.FaceConfidenceThreshold,
			EmotionScoreThreshold:   cfg.EmotionScoreThreshold,
		},
	)

	uc := usecase.NewProcessMessageUseCase(
		repo, storage, analyzeVideo,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessMessageConfig{
			TempDir:          cfg.TempDir,
			DefaultFrameStep: cfg.FrameStep,
			MaxRetries:       cfg.MaxRetries,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:           cfg.RabbitMQURL,
		Queue:         cfg.RabbitMQJobsQueue,
		Exchange:      cfg.RabbitMQExchange,
		DLQ:           cfg.RabbitMQDLQ,
		StatusQueue:   cfg.RabbitMQStatusQueue,
		Prefetch:      cfg.RabbitMQPrefetch,
		ConsumerCount: cfg.ConsumerCount,
		BaseDelayMs:   cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("emovid-analysis-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("emovid-analysis-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
