package lexicon

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// TestSaveLoadRoundTrip verifies a lexicon survives persistence, including
// the integer-keyed term-id table.
func TestSaveLoadRoundTrip(t *testing.T) {
	l := New()
	l.Terms["cat"] = &Entry{DocFreq: 2, CollectionFreq: 5, Offset: 0}
	l.Terms["sat"] = &Entry{DocFreq: 1, CollectionFreq: 1, NumNextTerms: 3, Offset: 12}
	l.TermIDs = map[int]string{0: "cat", 1: "sat", 2: "_"}
	l.Metadata = Metadata{
		Metadata: records.Metadata{
			NumberOfDocs:   10,
			CollectionSize: 200,
			Stemmed:        true,
		},
		VocabularySize: 2,
	}

	path := filepath.Join(t.TempDir(), "lexicon.json")
	if err := l.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e := got.Lookup("cat"); e == nil || e.DocFreq != 2 || e.CollectionFreq != 5 {
		t.Errorf("cat entry = %+v", e)
	}
	if e := got.Lookup("sat"); e == nil || e.NumNextTerms != 3 || e.Offset != 12 {
		t.Errorf("sat entry = %+v", e)
	}
	if e := got.Lookup("missing"); e != nil {
		t.Errorf("missing term returned %+v", e)
	}
	if term, ok := got.NextTerm(2); !ok || term != "_" {
		t.Errorf("NextTerm(2) = %q, %v", term, ok)
	}
	if got.Metadata.NumberOfDocs != 10 || !got.Metadata.Stemmed {
		t.Errorf("metadata = %+v", got.Metadata)
	}
}

// TestMetadataFlattensInJSON verifies the record-file header fields sit at
// the same level as the build outputs, not nested under a sub-object.
func TestMetadataFlattensInJSON(t *testing.T) {
	l := New()
	l.Metadata.NumberOfDocs = 3
	l.Metadata.VocabularySize = 7

	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(raw["metadata"], &meta); err != nil {
		t.Fatalf("Unmarshal metadata: %v", err)
	}
	for _, key := range []string{"number_of_docs", "vocabulary_size"} {
		if _, ok := meta[key]; !ok {
			t.Errorf("metadata missing key %q: %s", key, raw["metadata"])
		}
	}

	// The standard variant carries no term-id table.
	if strings.Contains(string(data), "term_ids") {
		t.Errorf("standard lexicon serialised a term_ids table: %s", data)
	}
}

// TestLoadErrors distinguishes a missing lexicon from a corrupt one.
func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.json"))
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Errorf("Load(absent) = %v, want ErrIndexNotFound", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err = Load(bad)
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("Load(bad) = %v, want ErrCorruptIndex", err)
	}
}
