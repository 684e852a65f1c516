package extractor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

var cacheBucket = []byte("extracted_text")

// CachedExtractor memoizes successful extractions by content hash so that
// identical bytes are never run through OCR twice.
type CachedExtractor struct {
	next   ports.TextExtractor
	db     *bolt.DB
	logger *slog.Logger
}

func OpenCache(path string, next ports.TextExtractor, logger *slog.Logger) (*CachedExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open extraction cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &CachedExtractor{next: next, db: db, logger: logger}, nil
}

func (c *CachedExtractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	format, ok := domain.FormatForExtension(domain.ExtensionOf(filename))
	if !ok {
		return c.next.Extract(ctx, filename, content)
	}

	key := cacheKey(format, content)
	if text, hit := c.lookup(key); hit {
		c.logger.Debug("extraction_cache_hit", "filename", filename, "format", string(format))
		return text, nil
	}

	text, err := c.next.Extract(ctx, filename, content)
	if err != nil {
		return "", err
	}
	if err := c.store(key, text); err != nil {
		c.logger.Warn("extraction_cache_store_failed", "filename", filename, "error", err)
	}
	return text, nil
}

func (c *CachedExtractor) Close() error {
	return c.db.Close()
}

func (c *CachedExtractor) lookup(key []byte) (string, bool) {
	var (
		text string
		hit  bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cacheBucket).Get(key)
		if v != nil {
			text = string(v)
			hit = true
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("extraction_cache_read_failed", "error", err)
		return "", false
	}
	return text, hit
}

func (c *CachedExtractor) store(key []byte, text string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(key, []byte(text))
	})
}

func cacheKey(format domain.Format, content []byte) []byte {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write(content)
	return h.Sum(nil)
}
