package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrFetch             = errors.New("fetch failed")
	ErrExtraction        = errors.New("extraction failed")
	ErrModelLoad         = errors.New("model load failed")
	ErrClassification    = errors.New("classification failed")
	ErrPersistence       = errors.New("persistence failed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrConflict          = errors.New("conflict")
	ErrTemporary         = errors.New("temporary failure")

	ErrObjectNotFound = errors.New("object not found")
	ErrEmptyText      = errors.New("no text content")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Extension == "" {
		return "unsupported format: missing file extension"
	}
	return fmt.Sprintf("unsupported format: %q", e.Extension)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// ExtractionError reports unreadable or structurally corrupt content for a format.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %v", e.Format, ErrExtraction)
	}
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

func NewExtractionError(format Format, err error) error {
	return &ExtractionError{Format: format, Err: err}
}
