package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type OCRConfig struct {
	Tesseract string        // binary name or absolute path; default "tesseract"
	Language  string        // default "eng"
	Timeout   time.Duration // 0 disables the bound
	Runner    Runner
}

// OCRStrategy recognises text in raster images with tesseract. Words are
// joined by single spaces in detection order.
type OCRStrategy struct {
	cfg    OCRConfig
	runner Runner
}

func NewOCRStrategy(cfg OCRConfig) *OCRStrategy {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	runner := cfg.Runner
	if runner == nil {
		runner = execRunner{}
	}
	return &OCRStrategy{cfg: cfg, runner: runner}
}

func (s *OCRStrategy) Format() domain.Format { return domain.FormatImage }

func (s *OCRStrategy) Extract(ctx context.Context, content []byte) (string, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
		return "", domain.NewExtractionError(domain.FormatImage, fmt.Errorf("decode image: %w", err))
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	// tesseract stdin stdout -l <lang> tsv
	out, errb, err := s.runner.Run(ctx, content, s.cfg.Tesseract, "stdin", "stdout", "-l", s.cfg.Language, "tsv")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.NewExtractionError(domain.FormatImage, fmt.Errorf("ocr timed out after %s: %w", s.cfg.Timeout, ctx.Err()))
		}
		return "", domain.NewExtractionError(domain.FormatImage, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512)))
	}
	return joinTSVWords(out), nil
}

// joinTSVWords keeps word-level rows (level 5) with recognised text.
func joinTSVWords(tsv []byte) string {
	lines := strings.Split(string(tsv), "\n")
	words := make([]string, 0, len(lines))
	for i, ln := range lines {
		if i == 0 && strings.HasPrefix(ln, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		if cols[10] == "-1" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		words = append(words, word)
	}
	return strings.Join(words, " ")
}
