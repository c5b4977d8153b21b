// Package report assembles the run comparison between the standard and
// nextword variants and writes it as a two-column CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Variant carries one variant's share of the comparison: collection and
// index sizes from the build, match counts and runtimes from the query run.
// Runtimes are in seconds.
type Variant struct {
	NumberOfDocs    int
	CollectionSize  int
	VocabularySize  int
	NumQueries      int
	MeanQueryLength float64
	NumMatched      int
	LexiconSizeB    int64
	InvertedSizeB   int64
	BuildRuntime    float64
	QueryRuntime    float64
}

// IndexSizeB is the combined size of the lexicon and postings files.
func (v Variant) IndexSizeB() int64 {
	return v.LexiconSizeB + v.InvertedSizeB
}

// TotalRuntime is build plus query time in seconds.
func (v Variant) TotalRuntime() float64 {
	return v.BuildRuntime + v.QueryRuntime
}

// WriteCSV writes the comparison to path. Collection-level rows come from
// the standard variant; _nw rows carry the nextword value and _change rows
// the nextword value as a percentage of the standard one, 0 when the
// standard value is zero.
func WriteCSV(path, testName string, std, nw Variant) error {
	rows := [][]string{
		{"test_name", testName},
		{"number_of_docs", strconv.Itoa(std.NumberOfDocs)},
		{"collection_size", strconv.Itoa(std.CollectionSize)},
		{"vocabulary_size", strconv.Itoa(std.VocabularySize)},
		{"number_of_queries", strconv.Itoa(std.NumQueries)},
		{"mean_query_length", ftoa(std.MeanQueryLength)},

		{"number_of_matched_queries", strconv.Itoa(std.NumMatched)},
		{"number_of_matched_queries_nw", strconv.Itoa(nw.NumMatched)},
		{"percent_queries_matched", ftoa(ratio(float64(nw.NumMatched), float64(std.NumQueries)))},

		{"inverted_size", strconv.FormatInt(std.InvertedSizeB, 10)},
		{"inverted_size_nw", strconv.FormatInt(nw.InvertedSizeB, 10)},
		{"inverted_size_change", ftoa(ratio(float64(nw.InvertedSizeB), float64(std.InvertedSizeB)))},

		{"lexicon_size", strconv.FormatInt(std.LexiconSizeB, 10)},
		{"lexicon_size_nw", strconv.FormatInt(nw.LexiconSizeB, 10)},
		{"lexicon_size_change", ftoa(ratio(float64(nw.LexiconSizeB), float64(std.LexiconSizeB)))},

		{"index_size", strconv.FormatInt(std.IndexSizeB(), 10)},
		{"index_size_nw", strconv.FormatInt(nw.IndexSizeB(), 10)},
		{"index_size_change", ftoa(ratio(float64(nw.IndexSizeB()), float64(std.IndexSizeB())))},

		{"index_runtime", ftoa(std.BuildRuntime)},
		{"index_runtime_nw", ftoa(nw.BuildRuntime)},
		{"index_runtime_change", ftoa(ratio(nw.BuildRuntime, std.BuildRuntime))},

		{"total_query_runtime", ftoa(std.QueryRuntime)},
		{"total_query_runtime_nw", ftoa(nw.QueryRuntime)},
		{"mean_query_runtime", ftoa(mean(std.QueryRuntime, std.NumQueries))},
		{"mean_query_runtime_nw", ftoa(mean(nw.QueryRuntime, nw.NumQueries))},
		{"query_runtime_change", ftoa(ratio(nw.QueryRuntime, std.QueryRuntime))},

		{"total_runtime", ftoa(std.TotalRuntime())},
		{"total_runtime_nw", ftoa(nw.TotalRuntime())},
		{"total_runtime_change", ftoa(ratio(nw.TotalRuntime(), std.TotalRuntime()))},
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing metrics rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing metrics file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing metrics file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming metrics file: %w", err)
	}
	return nil
}

// ratio reports nw as a percentage of std.
func ratio(nw, std float64) float64 {
	if std == 0 {
		return 0
	}
	return nw / std * 100
}

func mean(total float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
