package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// PDFStrategy concatenates per-page text in page order.
type PDFStrategy struct{}

func (PDFStrategy) Format() domain.Format { return domain.FormatPDF }

func (PDFStrategy) Extract(ctx context.Context, content []byte) (text string, err error) {
	// the parser panics on some malformed object graphs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.NewExtractionError(domain.FormatPDF, fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", domain.NewExtractionError(domain.FormatPDF, fmt.Errorf("open pdf: %w", err))
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.NewExtractionError(domain.FormatPDF, fmt.Errorf("page %d: %w", i, err))
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}
