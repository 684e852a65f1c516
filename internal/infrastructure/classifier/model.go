package classifier

import (
	"fmt"
	"slices"
)

// Model is an immutable trained pipeline; safe for concurrent Predict calls.
type Model struct {
	labels     []string
	vectorizer *vectorizer
	coef       [][]float64
	intercept  []float64
}

func NewModel(a Artifact) (*Model, error) {
	if err := a.check(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	coef := make([][]float64, len(a.Coef))
	for i, row := range a.Coef {
		coef[i] = slices.Clone(row)
	}
	return &Model{
		labels:     slices.Clone(a.Labels),
		vectorizer: newVectorizer(a.Vectorizer),
		coef:       coef,
		intercept:  slices.Clone(a.Intercept),
	}, nil
}

func (m *Model) Labels() []string {
	return slices.Clone(m.labels)
}

// Predict returns one label per input. Ties resolve to the label listed first.
func (m *Model) Predict(texts []string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		features := m.vectorizer.transform(text)
		best, bestScore := 0, 0.0
		for i := range m.labels {
			score := m.intercept[i]
			for _, f := range features {
				score += m.coef[i][f.index] * f.weight
			}
			if i == 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		out = append(out, m.labels[best])
	}
	return out, nil
}
