package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

type ClassifyOptions struct {
	Bucket       string
	FetchTimeout time.Duration
	// Projector is notified after a committed classification. Optional.
	Projector ports.ClassificationProjector
	Logger    *slog.Logger
}

// ClassifyDocumentUseCase runs validate → find → fetch → extract → classify →
// persist for one document reference. The record is written only by the last
// step, so any failure leaves it untouched.
type ClassifyDocumentUseCase struct {
	policy     domain.ExtensionPolicy
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier

	bucket       string
	fetchTimeout time.Duration
	projector    ports.ClassificationProjector
	logger       *slog.Logger

	inflight singleflight.Group
}

func NewClassifyDocumentUseCase(
	policy domain.ExtensionPolicy,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	opts ClassifyOptions,
) *ClassifyDocumentUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifyDocumentUseCase{
		policy:       policy,
		repo:         repo,
		storage:      storage,
		extractor:    extractor,
		classifier:   classifier,
		bucket:       opts.Bucket,
		fetchTimeout: opts.FetchTimeout,
		projector:    opts.Projector,
		logger:       logger,
	}
}

func (uc *ClassifyDocumentUseCase) ClassifyDocument(ctx context.Context, customerID int64, filename string) (*domain.ClassificationResult, error) {
	if err := uc.validate(filename); err != nil {
		return nil, err
	}

	// Overlapping requests for the same reference share one run. The run
	// ignores caller cancellation; fetch and OCR timeouts still bound it.
	key := domain.StorageKeyFor(customerID, filename)
	ch := uc.inflight.DoChan(key, func() (any, error) {
		return uc.runPipeline(context.WithoutCancel(ctx), customerID, filename)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("classify document: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			uc.logger.Debug("classification_shared", "customer_id", customerID, "filename", filename)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*domain.ClassificationResult)
		return &result, nil
	}
}

func (uc *ClassifyDocumentUseCase) runPipeline(ctx context.Context, customerID int64, filename string) (*domain.ClassificationResult, error) {
	start := time.Now()

	record, err := uc.findRecord(ctx, customerID, filename)
	if err != nil {
		return nil, uc.fail(err, "find", customerID, filename)
	}

	content, err := uc.fetchContent(ctx, record)
	if err != nil {
		return nil, uc.fail(err, "fetch", customerID, filename)
	}

	text, err := uc.extractText(ctx, filename, content)
	if err != nil {
		return nil, uc.fail(err, "extract", customerID, filename)
	}

	label, err := uc.classify(ctx, text)
	if err != nil {
		return nil, uc.fail(err, "classify", customerID, filename)
	}

	if err := uc.persistClassification(ctx, record, label); err != nil {
		return nil, uc.fail(err, "persist", customerID, filename)
	}

	uc.project(ctx, record, label)

	uc.logger.Info("document_classified",
		"customer_id", customerID,
		"filename", filename,
		"file_class", label,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return &domain.ClassificationResult{
		FileClass:  label,
		Filename:   filename,
		CustomerID: customerID,
	}, nil
}

func (uc *ClassifyDocumentUseCase) validate(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return domain.WrapError(domain.ErrValidation, "validate filename", errors.New("filename is required"))
	}
	return uc.policy.Validate(filename)
}

func (uc *ClassifyDocumentUseCase) findRecord(ctx context.Context, customerID int64, filename string) (*domain.DocumentRecord, error) {
	record, err := uc.repo.Find(ctx, customerID, filename)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "find document", err)
	}
	if record == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document",
			fmt.Errorf("no document %q for customer %d", filename, customerID))
	}
	return record, nil
}

func (uc *ClassifyDocumentUseCase) fetchContent(ctx context.Context, record *domain.DocumentRecord) ([]byte, error) {
	if uc.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.fetchTimeout)
		defer cancel()
	}
	content, err := uc.storage.Get(ctx, uc.bucket, record.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFetch, "fetch content", err)
	}
	return content, nil
}

func (uc *ClassifyDocumentUseCase) extractText(ctx context.Context, filename string, content []byte) (string, error) {
	text, err := uc.extractor.Extract(ctx, filename, content)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	if strings.TrimSpace(text) == "" {
		format, _ := domain.FormatForExtension(domain.ExtensionOf(filename))
		return "", domain.NewExtractionError(format, domain.ErrEmptyText)
	}
	return text, nil
}

func (uc *ClassifyDocumentUseCase) classify(ctx context.Context, text string) (string, error) {
	label, err := uc.classifier.Classify(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrClassification) || errors.Is(err, domain.ErrModelLoad) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrClassification, "classify text", err)
	}
	return label, nil
}

func (uc *ClassifyDocumentUseCase) persistClassification(ctx context.Context, record *domain.DocumentRecord, label string) error {
	if err := uc.repo.UpdateClassification(ctx, record, label); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return err
		}
		return domain.WrapError(domain.ErrPersistence, "save classification", err)
	}
	return nil
}

func (uc *ClassifyDocumentUseCase) project(ctx context.Context, record *domain.DocumentRecord, label string) {
	if uc.projector == nil {
		return
	}
	if err := uc.projector.ProjectClassification(ctx, *record, label); err != nil {
		uc.logger.Warn("classification_projection_failed",
			"customer_id", record.CustomerID,
			"filename", record.Filename,
			"error", err,
		)
	}
}

func (uc *ClassifyDocumentUseCase) fail(err error, stage string, customerID int64, filename string) error {
	uc.logger.Debug("classification_failed",
		"customer_id", customerID,
		"filename", filename,
		"stage", stage,
		"error", err,
	)
	return err
}
