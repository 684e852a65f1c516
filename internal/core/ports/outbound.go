package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// DocumentRepository persists and reads document metadata.
type DocumentRepository interface {
	Find(ctx context.Context, customerID int64, filename string) (*domain.DocumentRecord, error)
	// UpdateClassification commits the label or rolls back, leaving the record untouched.
	UpdateClassification(ctx context.Context, record *domain.DocumentRecord, label string) error
	Create(ctx context.Context, record *domain.DocumentRecord) error
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.DocumentRecord, error)
	EnsureCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
}

// ObjectStorage stores and retrieves raw document bytes by bucket/key.
type ObjectStorage interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Put never replaces an existing object; it fails with domain.ErrConflict.
	Put(ctx context.Context, bucket, key string, data io.Reader) error
	// Delete removes an object. A missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

// TextExtractor turns raw content into plain text based on the filename.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
}

// DocumentClassifier predicts a single label for text.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// JobQueue publishes/consumes asynchronous classification jobs.
type JobQueue interface {
	PublishClassificationJob(ctx context.Context, job domain.ClassificationJob) error
	SubscribeClassificationJobs(ctx context.Context, handler func(context.Context, domain.ClassificationJob) error) error
}

// ClassificationProjector mirrors committed classifications into a secondary view.
type ClassificationProjector interface {
	ProjectClassification(ctx context.Context, record domain.DocumentRecord, label string) error
}

// ReportRenderer renders a customer's document list as a downloadable file.
type ReportRenderer interface {
	RenderDocuments(customerID int64, records []domain.DocumentRecord) ([]byte, error)
}
