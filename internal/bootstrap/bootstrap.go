// Package bootstrap assembles the adapters and use cases shared by every binary.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/classifier"
	"github.com/kirillkom/document-classifier/internal/infrastructure/export"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor"
	"github.com/kirillkom/document-classifier/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/document-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-classifier/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/document-classifier/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/document-classifier/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Repo  *sqlstore.DocumentRepository
	Queue *nats.Queue // nil when NATS_URL is empty

	ClassifyUC  *usecase.ClassifyDocumentUseCase
	UploadUC    *usecase.UploadDocumentUseCase
	DocumentsUC *usecase.DocumentQueryUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	policy, err := domain.NewExtensionPolicy(cfg.AllowedExtensions)
	if err != nil {
		return nil, fmt.Errorf("allowed extensions: %w", err)
	}

	dialect, err := sqlstore.ParseDialect(cfg.MetadataDriver)
	if err != nil {
		return nil, err
	}
	target := cfg.SQLitePath
	if dialect == sqlstore.DialectPostgres {
		target = cfg.PostgresDSN
	}
	db, err := sqlstore.Open(dialect, target)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	app.onClose(func() { _ = db.Close() })

	repo := sqlstore.NewDocumentRepository(db, dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.Repo = repo

	executor := resilience.NewExecutor(resilience.DefaultConfig().WithRetryAttempts(cfg.RetryMaxAttempts), logger)

	storage, err := app.openStorage(ctx, executor)
	if err != nil {
		return nil, err
	}

	textExtractor, err := app.openExtractor()
	if err != nil {
		return nil, err
	}

	engine := classifier.NewEngine(cfg.ModelPath, logger)
	if cfg.ModelWarmup {
		if err := engine.Warmup(ctx); err != nil {
			return nil, err
		}
	}

	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			JobTimeout:         cfg.JobTimeout,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init job queue: %w", err)
		}
		app.onClose(queue.Close)
		app.Queue = queue
	}

	var projector ports.ClassificationProjector
	if strings.TrimSpace(cfg.Neo4jURI) != "" {
		graph, err := neo4j.New(ctx, neo4j.Options{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init classification graph: %w", err)
		}
		app.onClose(func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graph.Close(closeCtx)
		})
		projector = graph
	}

	app.ClassifyUC = usecase.NewClassifyDocumentUseCase(policy, repo, storage, textExtractor, engine, usecase.ClassifyOptions{
		Bucket:       cfg.StorageBucket,
		FetchTimeout: cfg.FetchTimeout,
		Projector:    projector,
		Logger:       logger,
	})

	var jobs ports.JobQueue
	if cfg.AsyncClassify && app.Queue != nil {
		jobs = app.Queue
	}
	app.UploadUC = usecase.NewUploadDocumentUseCase(policy, repo, storage, jobs, cfg.StorageBucket, logger)
	app.DocumentsUC = usecase.NewDocumentQueryUseCase(repo, export.NewXLSXRenderer(logger))

	return app, nil
}

func (a *App) openStorage(ctx context.Context, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(a.Config.StorageBackend)) {
	case "", "localfs":
		storage, err := localfs.New(a.Config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	case "gcs":
		storage, err := gcs.New(ctx, executor, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		a.onClose(func() { _ = storage.Close() })
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.Config.StorageBackend)
	}
}

func (a *App) openExtractor() (ports.TextExtractor, error) {
	dispatcher := extractor.NewDispatcher(extractor.Options{
		OCR: extractor.OCRConfig{
			Tesseract: a.Config.TesseractPath,
			Language:  a.Config.OCRLanguage,
			Timeout:   a.Config.OCRTimeout,
		},
		Logger: a.Logger,
	})
	if strings.TrimSpace(a.Config.ExtractionCachePath) == "" {
		return dispatcher, nil
	}
	cache, err := extractor.OpenCache(a.Config.ExtractionCachePath, dispatcher, a.Logger)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = cache.Close() })
	return cache, nil
}

// RequireQueue reports a configuration error for binaries that cannot run
// without NATS.
func (a *App) RequireQueue() error {
	if a.Queue == nil {
		return errors.New("NATS_URL is required")
	}
	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
