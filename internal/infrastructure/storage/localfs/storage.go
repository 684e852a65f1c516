// Package localfs keeps objects on the local filesystem as
// <base>/<bucket>/<key>.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrObjectNotFound, "localfs get", fmt.Errorf("%s/%s", bucket, key))
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Put writes through a temporary file so readers never see partial content,
// then links it into place. An existing object is left as is.
func (s *Storage) Put(ctx context.Context, bucket, key string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}
	defer os.Remove(tmp)
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.WrapError(domain.ErrConflict, "localfs put", fmt.Errorf("%s/%s already exists", bucket, key))
		}
		return fmt.Errorf("publish file: %w", err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *Storage) objectPath(bucket, key string) (string, error) {
	local := filepath.FromSlash(key)
	if !filepath.IsLocal(local) {
		return "", domain.WrapError(domain.ErrValidation, "localfs key", fmt.Errorf("invalid object key %q", key))
	}
	if bucket != "" && !filepath.IsLocal(bucket) {
		return "", domain.WrapError(domain.ErrValidation, "localfs bucket", fmt.Errorf("invalid bucket %q", bucket))
	}
	return filepath.Join(s.basePath, bucket, local), nil
}
