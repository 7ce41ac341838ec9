// Command worker consumes scan tasks from the queue: it fetches each
// object, runs the detectors and persists findings.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/bucketscan/internal/adapter/awsconf"
	s3store "github.com/fairyhunter13/bucketscan/internal/adapter/blobstore/s3"
	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/adapter/queue/sqs"
	"github.com/fairyhunter13/bucketscan/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bucketscan/internal/adapter/secrets/awssm"
	"github.com/fairyhunter13/bucketscan/internal/app"
	"github.com/fairyhunter13/bucketscan/internal/config"
	"github.com/fairyhunter13/bucketscan/internal/detect"
	"github.com/fairyhunter13/bucketscan/internal/usecase"
)

// workerPoolSize bounds the worker's database pool. Each message performs a
// handful of writes, so the pool stays modest even under load.
const workerPoolSize = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register Prometheus metrics in the worker process and expose them on
	// a dedicated /metrics endpoint so Prometheus can scrape queue and scan
	// instrumentation.
	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.MetricsPort), mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx := context.Background()

	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		slog.Error("aws config failed", slog.Any("error", err))
		os.Exit(1)
	}

	dsn := cfg.DBURL
	if cfg.DBSecretID != "" {
		dsn, err = awssm.New(awsCfg).DatabaseDSN(ctx, cfg.DBSecretID, cfg.DBTLS)
		if err != nil {
			slog.Error("db secret fetch failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	pool, err := postgres.NewPool(ctx, dsn, workerPoolSize)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories and adapters
	objectRepo := postgres.NewObjectRepo(pool)
	findingRepo := postgres.NewFindingRepo(pool)
	blobs := s3store.New(awsCfg, cfg.AWSEndpointURL, cfg.S3UsePathStyle)
	scanner := detect.New()

	processSvc := usecase.NewProcessService(objectRepo, findingRepo, blobs, scanner)
	consumer := sqs.NewConsumer(awsCfg, cfg, processSvc)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Stuck-object sweeper keeps jobs converging even when a worker dies
	// mid-object and the message ends up in the DLQ.
	if sweeper := app.NewStuckObjectSweeper(objectRepo, cfg.StuckObjectMaxAge, cfg.StuckObjectSweepInterval); sweeper != nil {
		go sweeper.Run(runCtx)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(runCtx); err != nil {
			slog.Error("consumer stopped", slog.Any("error", err))
		}
	}()

	slog.Info("worker started, waiting for shutdown signal",
		slog.String("queue_url", cfg.QueueURL))
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	stop()

	// Give the in-flight message a moment to finish; its context is
	// detached from runCtx, so interrupted work redelivers safely anyway.
	select {
	case <-done:
	case <-time.After(cfg.WorkerShutdownTimeout):
		slog.Warn("consumer did not stop in time, exiting")
	}
	slog.Info("worker stopped")
}
