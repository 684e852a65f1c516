package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

type UploadDocumentUseCase struct {
	policy  domain.ExtensionPolicy
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.JobQueue
	bucket  string
	logger  *slog.Logger
}

// NewUploadDocumentUseCase wires the upload flow. queue may be nil, in which
// case no classification job is enqueued.
func NewUploadDocumentUseCase(
	policy domain.ExtensionPolicy,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.JobQueue,
	bucket string,
	logger *slog.Logger,
) *UploadDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadDocumentUseCase{
		policy:  policy,
		repo:    repo,
		storage: storage,
		queue:   queue,
		bucket:  bucket,
		logger:  logger,
	}
}

func (uc *UploadDocumentUseCase) Upload(
	ctx context.Context,
	customerID int64,
	filename string,
	body io.Reader,
) (*domain.DocumentRecord, error) {
	if err := validateReference(uc.policy, customerID, filename); err != nil {
		return nil, err
	}

	existing, err := uc.repo.Find(ctx, customerID, filename)
	switch {
	case err == nil && existing != nil:
		return nil, domain.WrapError(domain.ErrConflict, "upload document",
			fmt.Errorf("document %q already exists for customer %d", filename, customerID))
	case err != nil && !errors.Is(err, domain.ErrDocumentNotFound):
		return nil, domain.WrapError(domain.ErrPersistence, "check existing document", err)
	}

	storageKey := domain.StorageKeyFor(customerID, filename)
	if err := uc.storage.Put(ctx, uc.bucket, storageKey, body); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.WrapError(domain.ErrConflict, "upload document",
				fmt.Errorf("document %q already exists for customer %d: %w", filename, customerID, err))
		}
		return nil, domain.WrapError(domain.ErrPersistence, "save to object storage", err)
	}

	now := time.Now().UTC()
	record := &domain.DocumentRecord{
		CustomerID: customerID,
		Filename:   filename,
		StorageKey: storageKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, record); err != nil {
		uc.discardObject(ctx, storageKey)
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "create document metadata", err)
	}

	queued := uc.enqueue(ctx, domain.ClassificationJob{CustomerID: customerID, Filename: filename, EnqueuedAt: now})

	uc.logger.Info("document_uploaded",
		"customer_id", customerID,
		"filename", filename,
		"storage_key", storageKey,
		"queued", queued,
	)
	return record, nil
}

// discardObject removes bytes whose metadata row could not be created, so the
// same upload can be retried.
func (uc *UploadDocumentUseCase) discardObject(ctx context.Context, storageKey string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), uc.bucket, storageKey); err != nil {
		uc.logger.Error("upload_cleanup_failed",
			"bucket", uc.bucket,
			"storage_key", storageKey,
			"error", err,
		)
	}
}

// enqueue publishes a classification job. The document is already committed,
// so a publish failure is logged and the document stays unclassified until
// /classify_file is called for it.
func (uc *UploadDocumentUseCase) enqueue(ctx context.Context, job domain.ClassificationJob) bool {
	if uc.queue == nil {
		return false
	}
	if err := uc.queue.PublishClassificationJob(ctx, job); err != nil {
		uc.logger.Warn("classification_enqueue_failed",
			"customer_id", job.CustomerID,
			"filename", job.Filename,
			"error", err,
		)
		return false
	}
	return true
}

// validateReference checks a (customer, filename) pair before any I/O.
func validateReference(policy domain.ExtensionPolicy, customerID int64, filename string) error {
	if customerID <= 0 {
		return domain.WrapError(domain.ErrValidation, "validate customer", fmt.Errorf("customer_id must be positive, got %d", customerID))
	}
	if strings.TrimSpace(filename) == "" {
		return domain.WrapError(domain.ErrValidation, "validate filename", errors.New("filename is required"))
	}
	if filepath.Base(filename) != filename || strings.ContainsAny(filename, `/\`) {
		return domain.WrapError(domain.ErrValidation, "validate filename", fmt.Errorf("filename %q must not contain path elements", filename))
	}
	return policy.Validate(filename)
}
