package classifier

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kljensen/snowball"
)

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

type vectorizer struct {
	vocabulary  map[string]int
	idf         []float64
	ngramMax    int
	sublinearTF bool
	stemmer     string
	l2          bool
}

func newVectorizer(vs VectorizerSpec) *vectorizer {
	ngramMax := vs.NgramMax
	if ngramMax < 1 {
		ngramMax = 1
	}
	return &vectorizer{
		vocabulary:  vs.Vocabulary,
		idf:         vs.IDF,
		ngramMax:    ngramMax,
		sublinearTF: vs.SublinearTF,
		stemmer:     vs.Stemmer,
		l2:          vs.Norm == "l2",
	}
}

func (v *vectorizer) tokens(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if v.stemmer == "" {
		return tokens
	}
	for i, tok := range tokens {
		tokens[i] = stemWord(tok, v.stemmer)
	}
	return tokens
}

type feature struct {
	index  int
	weight float64
}

// transform returns the TF-IDF vector as features sorted by vocabulary
// index, so that every reduction over it runs in a fixed order.
func (v *vectorizer) transform(text string) []feature {
	tokens := v.tokens(text)
	counts := make(map[int]float64)
	for n := 1; n <= v.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := tokens[i]
			if n > 1 {
				term = strings.Join(tokens[i:i+n], " ")
			}
			if idx, ok := v.vocabulary[term]; ok {
				counts[idx]++
			}
		}
	}

	features := make([]feature, 0, len(counts))
	for idx, tf := range counts {
		if v.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		features = append(features, feature{index: idx, weight: tf * v.idf[idx]})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].index < features[j].index })

	if v.l2 {
		var sumSquares float64
		for _, f := range features {
			sumSquares += f.weight * f.weight
		}
		if sumSquares > 0 {
			norm := math.Sqrt(sumSquares)
			for i := range features {
				features[i].weight /= norm
			}
		}
	}
	return features
}

func stemWord(word, language string) string {
	stem, err := snowball.Stem(word, language, true)
	if err != nil {
		return word
	}
	return stem
}
