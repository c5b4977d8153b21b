package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/phraselab/phrase-search-platform/internal/collection"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Phrase queries require positional information in the inverted index so
        that consecutive-term constraints can be verified document by document.
        The standard index stores one position list per term while the nextword
        index stores one list per adjacent term pair, trading disk space for
        fewer candidate positions at query time.`,
	"long": strings.Repeat(`Information retrieval systems normalise text before indexing by
        lower-casing tokens, stripping punctuation and digits, and optionally
        reducing each word to its stem. The same normalisation must be applied to
        queries or their terms will never match the lexicon. Positional postings
        then support phrase matching by extending candidate chains one adjacent
        position at a time until every query term is consumed. `, 20),
}

func BenchmarkNormalize(b *testing.B) {
	n := collection.NewNormalizer(false)
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				terms := n.Terms(text)
				_ = terms
			}
		})
	}
}

func BenchmarkNormalizeStemmed(b *testing.B) {
	n := collection.NewNormalizer(true)
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		terms := n.Terms(text)
		_ = terms
	}
}

func BenchmarkNormalizeParallel(b *testing.B) {
	n := collection.NewNormalizer(false)
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			terms := n.Terms(text)
			_ = terms
		}
	})
}

func BenchmarkNormalizeVaryingSize(b *testing.B) {
	n := collection.NewNormalizer(false)
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "phrase search postings lexicon retrieval "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				terms := n.Terms(text)
				_ = terms
			}
		})
	}
}
