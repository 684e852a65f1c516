package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/document-classifier/internal/bootstrap"
	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/observability/logging"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

const serviceName = "classifier-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	if err := app.RequireQueue(); err != nil {
		logger.Error("worker_queue_missing", "error", err)
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	handler := newJobHandler(app.ClassifyUC, workerMetrics, logger)
	if err := app.Queue.SubscribeClassificationJobs(ctx, handler); err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// newJobHandler runs one classification per job and records its outcome.
func newJobHandler(uc ports.DocumentClassificationService, m *metrics.WorkerMetrics, logger *slog.Logger) func(context.Context, domain.ClassificationJob) error {
	return func(ctx context.Context, job domain.ClassificationJob) error {
		start := time.Now()
		if !job.EnqueuedAt.IsZero() {
			m.ObserveQueueLag(serviceName, start.Sub(job.EnqueuedAt))
		}
		m.StartJob()

		result, err := uc.ClassifyDocument(ctx, job.CustomerID, job.Filename)
		m.FinishJob(serviceName, jobStatus(err), time.Since(start))
		if err != nil {
			return err
		}
		logger.Info("classification_job_done",
			"customer_id", job.CustomerID,
			"filename", job.Filename,
			"file_class", result.FileClass,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
		return nil
	}
}

func jobStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}
