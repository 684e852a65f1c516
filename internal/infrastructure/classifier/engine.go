// Package classifier serves document-type predictions from a trained text
// pipeline loaded lazily, once per process.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/textnorm"
)

type Predictor interface {
	Predict(texts []string) ([]string, error)
}

// Engine owns the loaded model. The first caller loads it; concurrent first
// callers wait for that single load and share its outcome, including failure.
type Engine struct {
	load   func() (Predictor, error)
	logger *slog.Logger
}

func NewEngine(modelPath string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return NewEngineWithLoader(func() (Predictor, error) {
		start := time.Now()
		model, err := LoadModel(modelPath)
		if err != nil {
			logger.Error("model_load_failed", "path", modelPath, "error", err)
			return nil, err
		}
		logger.Info("model_loaded",
			"path", modelPath,
			"labels", model.Labels(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
		return model, nil
	}, logger)
}

func NewEngineWithLoader(loader func() (Predictor, error), logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		load:   sync.OnceValues(loader),
		logger: logger,
	}
}

// Warmup forces the model load.
func (e *Engine) Warmup(_ context.Context) error {
	if _, err := e.load(); err != nil {
		return domain.WrapError(domain.ErrModelLoad, "warmup classifier", err)
	}
	return nil
}

func (e *Engine) Classify(ctx context.Context, text string) (string, error) {
	model, err := e.load()
	if err != nil {
		return "", domain.WrapError(domain.ErrModelLoad, "classify", err)
	}
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.ErrClassification, "classify", err)
	}

	labels, err := predict(model, textnorm.Normalize(text))
	if err != nil {
		return "", domain.WrapError(domain.ErrClassification, "classify", err)
	}
	if len(labels) != 1 {
		return "", domain.WrapError(domain.ErrClassification, "classify", fmt.Errorf("model returned %d labels for one input", len(labels)))
	}
	if labels[0] == "" {
		return "", domain.WrapError(domain.ErrClassification, "classify", errors.New("model returned empty label"))
	}
	return labels[0], nil
}

func predict(model Predictor, text string) (labels []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels = nil
			err = fmt.Errorf("inference panic: %v", r)
		}
	}()
	return model.Predict([]string{text})
}
