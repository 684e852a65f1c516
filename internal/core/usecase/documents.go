package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

// DocumentQueryUseCase serves read-only views over document metadata.
type DocumentQueryUseCase struct {
	repo     ports.DocumentRepository
	renderer ports.ReportRenderer
}

func NewDocumentQueryUseCase(repo ports.DocumentRepository, renderer ports.ReportRenderer) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{repo: repo, renderer: renderer}
}

func (uc *DocumentQueryUseCase) GetDocument(ctx context.Context, customerID int64, filename string) (*domain.DocumentRecord, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "get document", errors.New("filename is required"))
	}
	record, err := uc.repo.Find(ctx, customerID, filename)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "get document", err)
	}
	if record == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document",
			fmt.Errorf("no document %q for customer %d", filename, customerID))
	}
	return record, nil
}

func (uc *DocumentQueryUseCase) ExportXLSX(ctx context.Context, customerID int64) ([]byte, error) {
	if customerID <= 0 {
		return nil, domain.WrapError(domain.ErrValidation, "export documents", fmt.Errorf("customer_id must be positive, got %d", customerID))
	}
	if uc.renderer == nil {
		return nil, errors.New("export documents: renderer is not configured")
	}
	records, err := uc.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list documents", err)
	}
	out, err := uc.renderer.RenderDocuments(customerID, records)
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}
	return out, nil
}
