package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// TestWriteCSV checks the full row layout and the derived change rows.
func TestWriteCSV(t *testing.T) {
	std := Variant{
		NumberOfDocs:    100,
		CollectionSize:  5000,
		VocabularySize:  800,
		NumQueries:      4,
		MeanQueryLength: 2.5,
		NumMatched:      2,
		LexiconSizeB:    1000,
		InvertedSizeB:   4000,
		BuildRuntime:    2.0,
		QueryRuntime:    1.0,
	}
	nw := Variant{
		NumQueries:    4,
		NumMatched:    3,
		LexiconSizeB:  3000,
		InvertedSizeB: 6000,
		BuildRuntime:  4.0,
		QueryRuntime:  0.5,
	}

	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := WriteCSV(path, "webtest", std, nw); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open metrics: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse metrics: %v", err)
	}
	if len(rows) != 29 {
		t.Fatalf("expected 29 rows, got %d", len(rows))
	}

	got := make(map[string]string, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) != 2 {
			t.Fatalf("expected 2 columns, got %v", row)
		}
		got[row[0]] = row[1]
		order = append(order, row[0])
	}

	want := map[string]string{
		"test_name":                    "webtest",
		"number_of_docs":               "100",
		"collection_size":              "5000",
		"vocabulary_size":              "800",
		"number_of_queries":            "4",
		"mean_query_length":            "2.5",
		"number_of_matched_queries":    "2",
		"number_of_matched_queries_nw": "3",
		"percent_queries_matched":      "75",
		"inverted_size":                "4000",
		"inverted_size_nw":             "6000",
		"inverted_size_change":         "150",
		"lexicon_size":                 "1000",
		"lexicon_size_nw":              "3000",
		"lexicon_size_change":          "300",
		"index_size":                   "5000",
		"index_size_nw":                "9000",
		"index_size_change":            "180",
		"index_runtime":                "2",
		"index_runtime_nw":             "4",
		"index_runtime_change":         "200",
		"total_query_runtime":          "1",
		"total_query_runtime_nw":       "0.5",
		"mean_query_runtime":           "0.25",
		"mean_query_runtime_nw":        "0.125",
		"query_runtime_change":         "50",
		"total_runtime":                "3",
		"total_runtime_nw":             "4.5",
		"total_runtime_change":         "150",
	}
	for name, value := range want {
		if got[name] != value {
			t.Errorf("row %s: expected %s, got %s", name, value, got[name])
		}
	}

	if order[0] != "test_name" || order[8] != "percent_queries_matched" || order[28] != "total_runtime_change" {
		t.Errorf("unexpected row order: first=%s ninth=%s last=%s", order[0], order[8], order[28])
	}
	for i, name := range order {
		if name == "lexicon_size_change" && order[i+3] != "index_size_change" {
			t.Errorf("expected index_size_change three rows after lexicon_size_change, got %s", order[i+3])
		}
	}
}

// TestWriteCSVZeroDenominators checks change rows degrade to zero instead
// of dividing by zero.
func TestWriteCSVZeroDenominators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := WriteCSV(path, "empty", Variant{}, Variant{}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open metrics: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse metrics: %v", err)
	}
	for _, row := range rows {
		if row[0] == "test_name" {
			continue
		}
		if _, err := strconv.ParseFloat(row[1], 64); err != nil {
			t.Errorf("row %s: expected numeric value, got %q", row[0], row[1])
		}
	}
}
