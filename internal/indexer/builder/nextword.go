package builder

import (
	"github.com/phraselab/phrase-search-platform/internal/indexer/lexicon"
	"github.com/phraselab/phrase-search-platform/internal/indexer/postings"
	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
)

// pairGroup is the one in-flight buffer of the nextword builder: every
// document seen so far for the current (first term, next term) pair.
type pairGroup struct {
	nextTerm string
	docs     []docPositions
}

type docPositions struct {
	docID     int
	positions []int
}

// Nextword builds the biword index. Records arrive sorted by (first term,
// next term, doc id), so the builder holds exactly one pair group and
// flushes it when the next term changes, when a new first term begins, and
// once more at end of stream.
type Nextword struct {
	lex     *lexicon.Lexicon
	store   *postings.Writer
	termIDs map[string]int

	// group is the buffered pair group; firstTerm owns it and is credited
	// with num_next_terms when it flushes.
	group     *pairGroup
	firstTerm string
}

// NewNextword returns a builder writing into lex and store.
func NewNextword(lex *lexicon.Lexicon, store *postings.Writer) *Nextword {
	if lex.TermIDs == nil {
		lex.TermIDs = make(map[int]string)
	}
	return &Nextword{
		lex:     lex,
		store:   store,
		termIDs: make(map[string]int),
	}
}

// ProcessLine parses and processes one record line.
func (b *Nextword) ProcessLine(line string) error {
	rec, err := records.ParseNextword(line)
	if err != nil {
		return err
	}
	return b.Process(rec)
}

// Process consumes one pair record.
func (b *Nextword) Process(rec records.PairRecord) error {
	b.assignID(rec.First)
	b.assignID(rec.Next)

	entry := b.lex.Terms[rec.First]
	if entry == nil {
		// A new first term closes out the previous term's block. The flush
		// must happen before the offset snapshot because it advances the
		// write cursor.
		if b.group != nil {
			if err := b.flush(); err != nil {
				return err
			}
		}
		b.group = &pairGroup{nextTerm: rec.Next}
		b.firstTerm = rec.First
		entry = &lexicon.Entry{Offset: b.store.Offset()}
		b.lex.Terms[rec.First] = entry
	}
	entry.DocFreq++
	entry.CollectionFreq += len(rec.Positions)

	if rec.Next != b.group.nextTerm {
		if err := b.flush(); err != nil {
			return err
		}
		b.group = &pairGroup{nextTerm: rec.Next}
	}
	b.group.docs = append(b.group.docs, docPositions{
		docID:     rec.DocID,
		positions: rec.Positions,
	})
	return nil
}

// Finish flushes the final buffered group. Safe on an empty stream.
func (b *Nextword) Finish() error {
	if b.group == nil {
		return nil
	}
	return b.flush()
}

// flush writes the buffered group as next_term_id, pair_doc_freq, then each
// document's doc_id, position count, and positions, and credits the owning
// first term with one more next-term group.
func (b *Nextword) flush() error {
	b.lex.Terms[b.firstTerm].NumNextTerms++

	if err := b.store.WriteInt(b.termIDs[b.group.nextTerm]); err != nil {
		return err
	}
	if err := b.store.WriteInt(len(b.group.docs)); err != nil {
		return err
	}
	for _, doc := range b.group.docs {
		if err := b.store.WriteInt(doc.docID); err != nil {
			return err
		}
		if err := b.store.WriteInt(len(doc.positions)); err != nil {
			return err
		}
		for _, pos := range doc.positions {
			if err := b.store.WriteInt(pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignID gives term a compact id in first-seen order.
func (b *Nextword) assignID(term string) {
	if _, ok := b.termIDs[term]; ok {
		return
	}
	id := len(b.termIDs)
	b.termIDs[term] = id
	b.lex.TermIDs[id] = term
}
