package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// errorStatusTable is checked in order; the first matching kind wins.
var errorStatusTable = []struct {
	kind   error
	status int
	name   string
}{
	{domain.ErrUnsupportedFormat, http.StatusBadRequest, "unsupported_format"},
	{domain.ErrValidation, http.StatusBadRequest, "validation"},
	{domain.ErrDocumentNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrFetch, http.StatusInternalServerError, "fetch"},
	{domain.ErrExtraction, http.StatusInternalServerError, "extraction"},
	{domain.ErrModelLoad, http.StatusInternalServerError, "model_load"},
	{domain.ErrClassification, http.StatusInternalServerError, "classification"},
	{domain.ErrPersistence, http.StatusInternalServerError, "persistence"},
}

func mapErrorToHTTPStatus(err error) int {
	for _, entry := range errorStatusTable {
		if errors.Is(err, entry.kind) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// errorKindName labels an error for metrics and logs.
func errorKindName(err error) string {
	for _, entry := range errorStatusTable {
		if errors.Is(err, entry.kind) {
			return entry.name
		}
	}
	return "internal"
}
