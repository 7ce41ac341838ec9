// Command server starts the bucketscan HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/bucketscan/internal/adapter/awsconf"
	s3store "github.com/fairyhunter13/bucketscan/internal/adapter/blobstore/s3"
	httpserver "github.com/fairyhunter13/bucketscan/internal/adapter/httpserver"
	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/adapter/queue/sqs"
	"github.com/fairyhunter13/bucketscan/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bucketscan/internal/adapter/secrets/awssm"
	"github.com/fairyhunter13/bucketscan/internal/app"
	"github.com/fairyhunter13/bucketscan/internal/config"
	"github.com/fairyhunter13/bucketscan/internal/usecase"
)

// serverPoolSize bounds the API server's database pool; the worker runs a
// larger one because object processing is write-heavy.
const serverPoolSize = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register all Prometheus metrics once per process so that /metrics
	// exposes HTTP, scan and queue instrumentation.
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Shared AWS SDK configuration (S3, SQS, Secrets Manager).
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		slog.Error("aws config failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Database DSN, optionally resolved from Secrets Manager.
	dsn := cfg.DBURL
	if cfg.DBSecretID != "" {
		dsn, err = awssm.New(awsCfg).DatabaseDSN(ctx, cfg.DBSecretID, cfg.DBTLS)
		if err != nil {
			slog.Error("db secret fetch failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("db credentials loaded from secrets manager", slog.String("secret_id", cfg.DBSecretID))
	}

	if cfg.DBMigrate {
		if err := postgres.Migrate(ctx, dsn); err != nil {
			slog.Error("db migrate failed", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("db migrations applied")
	}

	pool, err := postgres.NewPool(ctx, dsn, serverPoolSize)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Repositories
	jobRepo := postgres.NewJobRepo(pool)
	objectRepo := postgres.NewObjectRepo(pool)
	findingRepo := postgres.NewFindingRepo(pool)

	// Blob store and task queue
	blobs := s3store.New(awsCfg, cfg.AWSEndpointURL, cfg.S3UsePathStyle)
	publisher := sqs.NewPublisher(awsCfg, cfg)

	// Usecases
	scanSvc := usecase.NewScanService(jobRepo, objectRepo, blobs, publisher)
	statusSvc := usecase.NewStatusService(jobRepo, objectRepo, findingRepo)
	findingsSvc := usecase.NewFindingsService(findingRepo)

	// Readiness checks
	dbCheck, queueCheck, bucketCheck := app.BuildReadinessChecks(cfg, pool, publisher, blobs)

	srv := httpserver.NewServer(cfg, scanSvc, statusSvc, findingsSvc, dbCheck, queueCheck, bucketCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
