// Package gcs stores document bytes in Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
)

type Storage struct {
	client   *storage.Client
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(ctx context.Context, executor *resilience.Executor, logger *slog.Logger, opts ...option.ClientOption) (*Storage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return NewWithClient(client, executor, logger), nil
}

func NewWithClient(client *storage.Client, executor *resilience.Executor, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return &Storage{client: client, executor: executor, logger: logger}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return resilience.Do(ctx, s.executor, "gcs.get", func(ctx context.Context) ([]byte, error) {
		r, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
		if err != nil {
			return nil, classifyError("open GCS object reader", err)
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			return nil, classifyError("read GCS object", err)
		}
		return data, nil
	}, resilience.TransientOnly)
}

// Put creates the object only if it does not exist yet.
func (s *Storage) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("buffer upload: %w", err)
	}

	return s.executor.Execute(ctx, "gcs.put", func(ctx context.Context) error {
		w := s.client.Bucket(bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
		if _, err := io.Copy(w, bytes.NewReader(payload)); err != nil {
			_ = w.Close()
			return classifyError("write GCS object", err)
		}
		if err := w.Close(); err != nil {
			return classifyError("finalize GCS write", err)
		}
		s.logger.Debug("gcs_object_written", "bucket", bucket, "key", key, "bytes", len(payload))
		return nil
	}, resilience.TransientOnly)
}

func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	return s.executor.Execute(ctx, "gcs.delete", func(ctx context.Context) error {
		err := s.client.Bucket(bucket).Object(key).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return classifyError("delete GCS object", err)
		}
		return nil
	}, resilience.TransientOnly)
}

// classifyError maps GCS failures onto domain kinds.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return domain.WrapError(domain.ErrObjectNotFound, op, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return domain.WrapError(domain.ErrObjectNotFound, op, err)
		case gerr.Code == http.StatusPreconditionFailed:
			return domain.WrapError(domain.ErrConflict, op, err)
		case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
			return domain.WrapError(domain.ErrTemporary, op, err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
