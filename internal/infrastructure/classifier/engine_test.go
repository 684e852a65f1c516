package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const defaultModelPath = "../../../models/text_classifier.json"

func TestEngineClassifiesSampleDocuments(t *testing.T) {
	engine := NewEngine(defaultModelPath, nil)
	if err := engine.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}

	cases := map[string]string{
		"First National Bank\nSTATEMENT PERIOD 01/01 - 01/31\nAccount Number 000123\nOpening balance 1,000.00\nDeposits 250.00\nWithdrawals 80.00\nClosing balance 1,170.00": "bank_statement",
		"DRIVER LICENSE\nDL D1234567 CLASS C\nDOB 01/02/1990 EXP 01/02/2030\nSEX F HGT 5-06 EYES BRN\nRESTRICTIONS NONE":                                                     "driver_license",
		"INVOICE\nInvoice Number: INV-0042\nBill To: Acme Ltd\nItem Qty Unit Price\nWidget 2 10.00\nSubtotal 20.00 Tax 2.00 Total 22.00\nAmount due by due date":             "invoice",
	}
	for text, want := range cases {
		got, err := engine.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got != want {
			t.Fatalf("Classify(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestEngineIsDeterministic(t *testing.T) {
	engine := NewEngine(defaultModelPath, nil)
	text := "total balance payment statement invoice license"

	first, err := engine.Classify(context.Background(), text)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		got, err := engine.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got != first {
			t.Fatalf("run %d returned %q, first run returned %q", i, got, first)
		}
	}
}

func TestEngineLoadsOnceUnderConcurrentFirstUse(t *testing.T) {
	model, err := LoadModel(defaultModelPath)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	var loads atomic.Int32
	release := make(chan struct{})
	engine := NewEngineWithLoader(func() (Predictor, error) {
		loads.Add(1)
		<-release
		return model, nil
	}, nil)

	const callers = 32
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Classify(context.Background(), "invoice total due"); err != nil {
				errs <- err
			}
		}()
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Classify() error = %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
}

func TestEngineRemembersLoadFailure(t *testing.T) {
	var loads atomic.Int32
	engine := NewEngineWithLoader(func() (Predictor, error) {
		loads.Add(1)
		return nil, errors.New("artifact missing")
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := engine.Classify(context.Background(), "anything")
		if !errors.Is(err, domain.ErrModelLoad) {
			t.Fatalf("expected ErrModelLoad, got %v", err)
		}
	}
	if err := engine.Warmup(context.Background()); !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("expected Warmup ErrModelLoad, got %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Fatalf("expected one load attempt, got %d", got)
	}
}

func TestEngineCorruptArtifactIsModelLoadError(t *testing.T) {
	cases := map[string]string{
		"not json":      "{not-json",
		"schema":        `{"labels": [], "vectorizer": {"vocabulary": {"a": 0}, "idf": [1]}, "coef": [], "intercept": []}`,
		"dims mismatch": `{"labels": ["a"], "vectorizer": {"vocabulary": {"aa": 0, "bb": 1}, "idf": [1, 1]}, "coef": [[1]], "intercept": [0]}`,
		"idf mismatch":  `{"labels": ["a"], "vectorizer": {"vocabulary": {"aa": 0}, "idf": [1, 1]}, "coef": [[1]], "intercept": [0]}`,
		"bad index":     `{"labels": ["a"], "vectorizer": {"vocabulary": {"aa": 3}, "idf": [1]}, "coef": [[1]], "intercept": [0]}`,
		"bad stemmer":   `{"labels": ["a"], "vectorizer": {"vocabulary": {"aa": 0}, "idf": [1], "stemmer": "klingon"}, "coef": [[1]], "intercept": [0]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write artifact: %v", err)
			}
			engine := NewEngine(path, nil)
			if err := engine.Warmup(context.Background()); !errors.Is(err, domain.ErrModelLoad) {
				t.Fatalf("expected ErrModelLoad, got %v", err)
			}
		})
	}

	engine := NewEngine(filepath.Join(t.TempDir(), "missing.json"), nil)
	if _, err := engine.Classify(context.Background(), "x"); !errors.Is(err, domain.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad for missing artifact, got %v", err)
	}
}

type predictorFunc func([]string) ([]string, error)

func (f predictorFunc) Predict(texts []string) ([]string, error) { return f(texts) }

func TestEngineInferenceFailuresAreClassificationErrors(t *testing.T) {
	cases := map[string]predictorFunc{
		"error": func([]string) ([]string, error) { return nil, errors.New("bad input") },
		"panic": func([]string) ([]string, error) { panic("index out of range") },
		"two":   func([]string) ([]string, error) { return []string{"a", "b"}, nil },
		"empty": func([]string) ([]string, error) { return []string{""}, nil },
	}
	for name, predictor := range cases {
		t.Run(name, func(t *testing.T) {
			engine := NewEngineWithLoader(func() (Predictor, error) { return predictor, nil }, nil)
			_, err := engine.Classify(context.Background(), "text")
			if !errors.Is(err, domain.ErrClassification) {
				t.Fatalf("expected ErrClassification, got %v", err)
			}
			if errors.Is(err, domain.ErrModelLoad) {
				t.Fatalf("inference failure must not be reported as load failure: %v", err)
			}
		})
	}
}

func TestEngineNormalizesBeforePredict(t *testing.T) {
	var seen []string
	engine := NewEngineWithLoader(func() (Predictor, error) {
		return predictorFunc(func(texts []string) ([]string, error) {
			seen = texts
			return []string{"invoice"}, nil
		}), nil
	}, nil)

	if _, err := engine.Classify(context.Background(), "  INVOICE,\n\tTotal!! "); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(seen) != 1 || seen[0] != "invoice total" {
		t.Fatalf("expected normalized single input, got %q", seen)
	}
}
