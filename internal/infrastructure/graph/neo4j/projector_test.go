package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestProjectClassificationSendsParameters(t *testing.T) {
	var (
		gotCypher string
		gotParams map[string]any
	)
	p := newProjector(func(_ context.Context, cypher string, params map[string]any) error {
		gotCypher = cypher
		gotParams = params
		return nil
	}, nil, nil)

	record := domain.DocumentRecord{
		CustomerID: 1,
		Filename:   "test.pdf",
		Version:    2,
		UpdatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := p.ProjectClassification(context.Background(), record, "bank_statement"); err != nil {
		t.Fatalf("ProjectClassification() error = %v", err)
	}

	if !strings.Contains(gotCypher, "CLASSIFIED_AS") || !strings.Contains(gotCypher, "DELETE old") {
		t.Fatalf("unexpected cypher %q", gotCypher)
	}
	if gotParams["customer_id"] != int64(1) || gotParams["filename"] != "test.pdf" || gotParams["label"] != "bank_statement" {
		t.Fatalf("unexpected params %+v", gotParams)
	}
	if gotParams["updated_at"] != "2026-01-01T00:00:00.000000000Z" {
		t.Fatalf("unexpected timestamp %v", gotParams["updated_at"])
	}
}

func TestProjectClassificationWrapsErrors(t *testing.T) {
	cause := errors.New("service unavailable")
	p := newProjector(func(context.Context, string, map[string]any) error { return cause }, nil, nil)

	err := p.ProjectClassification(context.Background(), domain.DocumentRecord{CustomerID: 1, Filename: "a.pdf"}, "invoice")
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("Close() without driver error = %v", err)
	}
}
