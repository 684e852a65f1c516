package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestJobEncodingRoundTrip(t *testing.T) {
	enqueued := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	payload, err := encodeJob(domain.ClassificationJob{CustomerID: 1, Filename: "test.pdf", EnqueuedAt: enqueued})
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}

	job, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if job.CustomerID != 1 || job.Filename != "test.pdf" || !job.EnqueuedAt.Equal(enqueued) {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestEncodeJobRejectsIncompleteJobs(t *testing.T) {
	for _, job := range []domain.ClassificationJob{
		{Filename: "a.pdf"},
		{CustomerID: 1, Filename: " "},
	} {
		if _, err := encodeJob(job); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("encodeJob(%+v) expected ErrValidation, got %v", job, err)
		}
	}
}

func TestDecodeJobRejectsMalformedPayloads(t *testing.T) {
	for _, payload := range []string{"doc-1", `{"customer_id": 1}`, `{"filename": "a.pdf"}`} {
		if _, err := decodeJob([]byte(payload)); err == nil {
			t.Fatalf("decodeJob(%q) expected error", payload)
		}
	}
}

func TestClassifyPublishError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"no servers", nats.ErrNoServers, true, true},
		{"wrapped timeout", fmt.Errorf("nats publish: %w", nats.ErrTimeout), true, true},
		{"reconnect buffer", nats.ErrReconnectBufExceeded, true, true},
		{"canceled", context.Canceled, false, false},
		{"bad subject", nats.ErrBadSubject, false, false},
		{"max payload", nats.ErrMaxPayload, false, false},
		{"unknown", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		class := classifyPublishError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, class)
		}
	}
}

func TestPublishErrorKinds(t *testing.T) {
	if err := publishError(nats.ErrTimeout); !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if err := publishError(nats.ErrMaxPayload); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	plain := errors.New("boom")
	if err := publishError(plain); err != plain {
		t.Fatalf("expected unknown error unchanged, got %v", err)
	}
	if publishError(nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}
