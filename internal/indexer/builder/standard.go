// Package builder consumes the sorted record stream and emits the lexicon
// and binary postings store. The standard variant groups records by term;
// the nextword variant additionally groups by next-term inside each term's
// block, buffering exactly one pair group at a time.
package builder

import (
	"github.com/phraselab/phrase-search-platform/internal/indexer/lexicon"
	"github.com/phraselab/phrase-search-platform/internal/indexer/postings"
	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
)

// Standard builds a positional single-term index. Each record is one
// document's full postings for a term, so nothing needs buffering: the
// record is written straight through as doc_id, term_freq, positions.
type Standard struct {
	lex   *lexicon.Lexicon
	store *postings.Writer
}

// NewStandard returns a builder writing into lex and store.
func NewStandard(lex *lexicon.Lexicon, store *postings.Writer) *Standard {
	return &Standard{lex: lex, store: store}
}

// ProcessLine parses and processes one record line.
func (b *Standard) ProcessLine(line string) error {
	rec, err := records.ParseStandard(line)
	if err != nil {
		return err
	}
	return b.Process(rec)
}

// Process consumes one record. All records for a term must arrive
// contiguously; the term's offset is snapshotted when its first record
// appears and its block grows until the next term begins.
func (b *Standard) Process(rec records.Record) error {
	entry := b.lex.Terms[rec.Term]
	if entry == nil {
		entry = &lexicon.Entry{Offset: b.store.Offset()}
		b.lex.Terms[rec.Term] = entry
	}
	entry.DocFreq++
	entry.CollectionFreq += len(rec.Positions)

	if err := b.store.WriteInt(rec.DocID); err != nil {
		return err
	}
	if err := b.store.WriteInt(len(rec.Positions)); err != nil {
		return err
	}
	for _, pos := range rec.Positions {
		if err := b.store.WriteInt(pos); err != nil {
			return err
		}
	}
	return nil
}

// Finish completes the build. The standard variant holds no buffered state,
// so there is nothing to write; it exists so both builders share a
// lifecycle.
func (b *Standard) Finish() error {
	return nil
}
