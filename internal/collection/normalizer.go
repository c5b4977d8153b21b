// Package collection reads tagged document collections and normalises their
// text into the term streams the indexer and query resolvers consume.
package collection

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// Normalizer converts raw document text into index terms. It splits on
// whitespace, lower-cases each token, strips every non-letter inside it, and
// optionally applies Snowball stemming. A Normalizer is stateless and safe
// for concurrent use.
type Normalizer struct {
	stem bool
}

// NewNormalizer returns a Normalizer. When stem is true each term is reduced
// with the English Snowball stemmer.
func NewNormalizer(stem bool) *Normalizer {
	return &Normalizer{stem: stem}
}

// Stemmed reports whether this Normalizer applies stemming. Query-side
// callers use it to normalise queries the same way the index was built.
func (n *Normalizer) Stemmed() bool {
	return n.stem
}

// Terms splits text into normalised terms. Non-letters are removed inside
// each token ("don't" becomes "dont"), and tokens left empty are dropped, so
// punctuation and digits never reach the index. Term positions are the
// indices of the returned slice.
func (n *Normalizer) Terms(text string) []string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, raw := range fields {
		term := normalizeTerm(raw)
		if term == "" {
			continue
		}
		if n.stem {
			term = english.Stem(term, true)
		}
		terms = append(terms, term)
	}
	return terms
}

// normalizeTerm lower-cases a token and deletes everything outside [a-z].
func normalizeTerm(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, raw)
}
