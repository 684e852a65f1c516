// Package textnorm holds the text cleaning applied before inference.
package textnorm

import (
	"strings"
	"unicode"
)

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Normalize lowercases text, strips punctuation and collapses whitespace.
// It is pure and idempotent.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	stripped := strings.Map(func(r rune) rune {
		if isPunctuation(r) {
			return -1
		}
		return r
	}, lowered)
	return strings.Join(strings.Fields(stripped), " ")
}

func isPunctuation(r rune) bool {
	if r < unicode.MaxASCII {
		return strings.ContainsRune(asciiPunctuation, r)
	}
	return unicode.IsPunct(r)
}
