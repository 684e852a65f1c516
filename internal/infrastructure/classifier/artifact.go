package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the serialized form of a trained pipeline: a TF-IDF
// vectorizer followed by a one-vs-rest linear classifier.
type Artifact struct {
	Labels     []string       `json:"labels"`
	Vectorizer VectorizerSpec `json:"vectorizer"`
	Coef       [][]float64    `json:"coef"`
	Intercept  []float64      `json:"intercept"`
}

type VectorizerSpec struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramMax    int            `json:"ngram_max"`
	SublinearTF bool           `json:"sublinear_tf"`
	Stemmer     string         `json:"stemmer"`
	Norm        string         `json:"norm"`
}

// LoadModel reads, validates and decodes the artifact at path.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return DecodeModel(data)
}

func DecodeModel(data []byte) (*Model, error) {
	if err := validateArtifact(data); err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return NewModel(artifact)
}

func (a Artifact) check() error {
	dims := len(a.Vectorizer.Vocabulary)
	if len(a.Vectorizer.IDF) != dims {
		return fmt.Errorf("idf has %d entries, vocabulary has %d", len(a.Vectorizer.IDF), dims)
	}
	seen := make([]bool, dims)
	for term, idx := range a.Vectorizer.Vocabulary {
		if idx < 0 || idx >= dims {
			return fmt.Errorf("vocabulary index %d for %q out of range", idx, term)
		}
		if seen[idx] {
			return fmt.Errorf("vocabulary index %d assigned twice", idx)
		}
		seen[idx] = true
	}
	if len(a.Coef) != len(a.Labels) {
		return fmt.Errorf("coef has %d rows, want %d labels", len(a.Coef), len(a.Labels))
	}
	for i, row := range a.Coef {
		if len(row) != dims {
			return fmt.Errorf("coef row %d has %d columns, want %d", i, len(row), dims)
		}
	}
	if len(a.Intercept) != len(a.Labels) {
		return fmt.Errorf("intercept has %d entries, want %d", len(a.Intercept), len(a.Labels))
	}
	return nil
}
