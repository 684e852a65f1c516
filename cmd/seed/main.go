package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-classifier/internal/bootstrap"
	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/observability/logging"
)

const (
	serviceName     = "classifier-seed"
	seedConcurrency = 4
)

var defaultCustomer = domain.Customer{ID: 1, Name: "John Doe"}

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

	s := &seeder{
		customers: app.Repo,
		uploader:  app.UploadUC,
		logger:    logger,
	}
	// uploads already enqueue jobs in async mode
	if !cfg.AsyncClassify || app.Queue == nil {
		s.classifier = app.ClassifyUC
	}

	report, err := s.run(ctx, cfg.SeedDir)
	if err != nil {
		logger.Error("seed_failed", "dir", cfg.SeedDir, "error", err)
		os.Exit(1)
	}
	logger.Info("seed_completed",
		"dir", cfg.SeedDir,
		"uploaded", report.uploaded.Load(),
		"skipped", report.skipped.Load(),
		"classified", report.classified.Load(),
	)
}

type customerStore interface {
	EnsureCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
}

// seeder registers the default customer and uploads every regular file in a
// directory on their behalf. Classification is optional.
type seeder struct {
	customers  customerStore
	uploader   ports.DocumentUploader
	classifier ports.DocumentClassificationService
	logger     *slog.Logger
}

type seedReport struct {
	uploaded   atomic.Int64
	skipped    atomic.Int64
	classified atomic.Int64
}

func (s *seeder) run(ctx context.Context, dir string) (*seedReport, error) {
	customer, err := s.customers.EnsureCustomer(ctx, defaultCustomer)
	if err != nil {
		return nil, fmt.Errorf("ensure customer: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}

	report := &seedReport{}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(seedConcurrency)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		eg.Go(func() error {
			return s.seedFile(gctx, customer.ID, filepath.Join(dir, name), name, report)
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *seeder) seedFile(ctx context.Context, customerID int64, path, name string, report *seedReport) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := s.uploader.Upload(ctx, customerID, name, f); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
			s.logger.Info("seed_file_skipped", "filename", name, "reason", err.Error())
			report.skipped.Add(1)
			return nil
		}
		return fmt.Errorf("upload %s: %w", name, err)
	}
	report.uploaded.Add(1)

	if s.classifier == nil {
		return nil
	}
	result, err := s.classifier.ClassifyDocument(ctx, customerID, name)
	if err != nil {
		s.logger.Warn("seed_classification_failed", "filename", name, "error", err)
		return nil
	}
	report.classified.Add(1)
	s.logger.Info("seed_file_classified", "filename", name, "file_class", result.FileClass)
	return nil
}
