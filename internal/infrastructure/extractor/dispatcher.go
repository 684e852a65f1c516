// Package extractor converts raw document bytes into plain text. The variant is
// chosen from the filename extension alone; content is never sniffed.
package extractor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Strategy is one format-specific extraction variant.
type Strategy interface {
	Format() domain.Format
	Extract(ctx context.Context, content []byte) (string, error)
}

type Options struct {
	OCR    OCRConfig
	Logger *slog.Logger
}

type Dispatcher struct {
	strategies map[domain.Format]Strategy
	logger     *slog.Logger
}

func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return NewDispatcherWithStrategies(logger,
		PDFStrategy{},
		DOCXStrategy{},
		PlainTextStrategy{},
		NewOCRStrategy(opts.OCR),
	)
}

// NewDispatcherWithStrategies registers strategies by their format. A later
// strategy for the same format replaces an earlier one.
func NewDispatcherWithStrategies(logger *slog.Logger, strategies ...Strategy) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	byFormat := make(map[domain.Format]Strategy, len(strategies))
	for _, s := range strategies {
		byFormat[s.Format()] = s
	}
	return &Dispatcher{strategies: byFormat, logger: logger}
}

// Select maps the filename extension to its strategy.
func (d *Dispatcher) Select(filename string) (Strategy, error) {
	ext := domain.ExtensionOf(filename)
	format, ok := domain.FormatForExtension(ext)
	if !ok {
		return nil, &domain.UnsupportedFormatError{Extension: ext}
	}
	strategy, ok := d.strategies[format]
	if !ok {
		return nil, &domain.UnsupportedFormatError{Extension: ext}
	}
	return strategy, nil
}

func (d *Dispatcher) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	strategy, err := d.Select(filename)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := strategy.Extract(ctx, content)
	if err != nil {
		var extractionErr *domain.ExtractionError
		if !errors.As(err, &extractionErr) {
			err = domain.NewExtractionError(strategy.Format(), err)
		}
		d.logger.Debug("text_extraction_failed",
			"filename", filename,
			"format", string(strategy.Format()),
			"error", err,
		)
		return "", err
	}

	d.logger.Debug("text_extracted",
		"filename", filename,
		"format", string(strategy.Format()),
		"chars", len(text),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return text, nil
}
