package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/phraselab/phrase-search-platform/internal/indexer"
	"github.com/phraselab/phrase-search-platform/internal/searcher"
	"github.com/phraselab/phrase-search-platform/internal/searcher/resolver"
)

// openResolver opens a fresh index handle and wraps it in the variant's
// resolver. Each handle owns its own store cursor, so callers that want
// concurrency open one per goroutine.
func openResolver(b *testing.B, dir string, v indexer.Variant) (searcher.Resolver, func()) {
	b.Helper()
	ix, err := indexer.OpenIndex(dir, v)
	if err != nil {
		b.Fatal(err)
	}
	if v == indexer.VariantNextword {
		return resolver.NewNextword(ix, resolver.ChainMerge), func() { ix.Close() }
	}
	return resolver.NewStandard(ix, resolver.ChainMerge), func() { ix.Close() }
}

// BenchmarkStandardMatch measures phrase resolution latency on the standard
// index at various collection sizes. The phrase occurs in every document.
func BenchmarkStandardMatch(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	phrase := []string{"quick", "brown", "fox"}
	for _, numDocs := range sizes {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			dir := b.TempDir()
			buildBenchIndex(b, dir, indexer.VariantStandard, numDocs)
			res, closeIx := openResolver(b, dir, indexer.VariantStandard)
			defer closeIx()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				docs, err := res.Match(phrase)
				if err != nil {
					b.Fatal(err)
				}
				_ = docs
			}
		})
	}
}

// BenchmarkNextwordMatch measures the same workload on the nextword index,
// where pair postings let the resolver skip unrelated next-term blocks.
func BenchmarkNextwordMatch(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	phrase := []string{"quick", "brown", "fox"}
	for _, numDocs := range sizes {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			dir := b.TempDir()
			buildBenchIndex(b, dir, indexer.VariantNextword, numDocs)
			res, closeIx := openResolver(b, dir, indexer.VariantNextword)
			defer closeIx()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				docs, err := res.Match(phrase)
				if err != nil {
					b.Fatal(err)
				}
				_ = docs
			}
		})
	}
}

// BenchmarkMatchPhraseLength measures how resolution cost grows with the
// number of query terms.
func BenchmarkMatchPhraseLength(b *testing.B) {
	full := strings.Fields("the quick brown fox jumps over the lazy dog")
	dir := b.TempDir()
	buildBenchIndex(b, dir, indexer.VariantStandard, 1000)
	res, closeIx := openResolver(b, dir, indexer.VariantStandard)
	defer closeIx()

	for _, numTerms := range []int{2, 3, 5, 9} {
		phrase := full[:numTerms]
		b.Run(fmt.Sprintf("terms_%d", numTerms), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				docs, err := res.Match(phrase)
				if err != nil {
					b.Fatal(err)
				}
				_ = docs
			}
		})
	}
}

// BenchmarkStandardMatchParallel measures concurrent phrase throughput. A
// single resolver serialises on its store cursor, so each goroutine opens
// its own index handle.
func BenchmarkStandardMatchParallel(b *testing.B) {
	phrase := []string{"quick", "brown", "fox"}
	dir := b.TempDir()
	buildBenchIndex(b, dir, indexer.VariantStandard, 1000)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ix, err := indexer.OpenIndex(dir, indexer.VariantStandard)
		if err != nil {
			b.Fatal(err)
		}
		defer ix.Close()
		res := resolver.NewStandard(ix, resolver.ChainMerge)

		for pb.Next() {
			docs, err := res.Match(phrase)
			if err != nil {
				b.Fatal(err)
			}
			_ = docs
		}
	})
}

// BenchmarkStandardMatchShared measures the contended case for comparison:
// every goroutine funnels through one resolver's mutex.
func BenchmarkStandardMatchShared(b *testing.B) {
	phrase := []string{"quick", "brown", "fox"}
	dir := b.TempDir()
	buildBenchIndex(b, dir, indexer.VariantStandard, 1000)
	res, closeIx := openResolver(b, dir, indexer.VariantStandard)
	defer closeIx()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			docs, err := res.Match(phrase)
			if err != nil {
				b.Fatal(err)
			}
			_ = docs
		}
	})
}
