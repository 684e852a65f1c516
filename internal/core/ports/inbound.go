package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// DocumentClassificationService is the inbound contract for classify-document.
type DocumentClassificationService interface {
	ClassifyDocument(ctx context.Context, customerID int64, filename string) (*domain.ClassificationResult, error)
}

// DocumentUploader stores a new document and its metadata record.
type DocumentUploader interface {
	Upload(ctx context.Context, customerID int64, filename string, body io.Reader) (*domain.DocumentRecord, error)
}

// DocumentReader is the inbound read model for document metadata.
type DocumentReader interface {
	GetDocument(ctx context.Context, customerID int64, filename string) (*domain.DocumentRecord, error)
}

// DocumentExporter renders a customer's documents as a spreadsheet.
type DocumentExporter interface {
	ExportXLSX(ctx context.Context, customerID int64) ([]byte, error)
}
