// Package lexicon holds the persisted term dictionary: per-term frequencies
// and postings offsets, build metadata, and for the nextword variant the
// compact term-id table.
package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// Entry is one term's dictionary row. Offset is measured in 4-byte units
// into the postings store. NumNextTerms is only set by the nextword builder:
// the count of distinct next-term groups inside the term's block.
type Entry struct {
	DocFreq        int   `json:"doc_freq"`
	CollectionFreq int   `json:"collection_freq"`
	NumNextTerms   int   `json:"num_next_terms,omitempty"`
	Offset         int64 `json:"offset"`
}

// Metadata extends the record-file header with build outputs.
type Metadata struct {
	records.Metadata
	VocabularySize int              `json:"vocabulary_size"`
	RecordFile     records.FileInfo `json:"record_file"`
	InvertedFile   records.FileInfo `json:"inverted_file"`
}

// Lexicon is the full persisted dictionary. TermIDs maps compact integer ids
// back to next-term strings and is present only for the nextword variant.
type Lexicon struct {
	Metadata Metadata          `json:"metadata"`
	Terms    map[string]*Entry `json:"terms"`
	TermIDs  map[int]string    `json:"term_ids,omitempty"`
}

// New returns an empty Lexicon ready for a build.
func New() *Lexicon {
	return &Lexicon{
		Terms: make(map[string]*Entry),
	}
}

// Lookup returns the entry for term, or nil if the term is not indexed.
func (l *Lexicon) Lookup(term string) *Entry {
	return l.Terms[term]
}

// NextTerm resolves a next-term id from the postings store back to its
// string form.
func (l *Lexicon) NextTerm(id int) (string, bool) {
	term, ok := l.TermIDs[id]
	return term, ok
}

// Save writes the lexicon as JSON, through a .tmp file renamed on success.
func (l *Lexicon) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating lexicon directory: %w", err)
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshaling lexicon: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing lexicon file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming lexicon file: %w", err)
	}
	return nil
}

// Load reads a lexicon written by Save. A missing file maps to
// ErrIndexNotFound, undecodable content to ErrCorruptIndex.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: lexicon %s", apperrors.ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("reading lexicon file: %w", err)
	}
	var l Lexicon
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: lexicon %s: %v", apperrors.ErrCorruptIndex, path, err)
	}
	if l.Terms == nil {
		l.Terms = make(map[string]*Entry)
	}
	return &l, nil
}
