package resolver

import (
	"sync"

	"github.com/phraselab/phrase-search-platform/internal/indexer"
)

// Standard matches phrases by positional intersection over a single-term
// index: it decodes the full postings block of every query term and extends
// position chains document by document.
type Standard struct {
	ix       *indexer.Index
	strategy ChainStrategy

	// The store keeps a single cursor, so resolutions are serialised.
	mu sync.Mutex
}

// NewStandard returns a resolver over ix, which must hold a standard-variant
// index.
func NewStandard(ix *indexer.Index, strategy ChainStrategy) *Standard {
	return &Standard{ix: ix, strategy: strategy}
}

// Match returns the ids of documents containing terms as an exact phrase,
// ascending. A term missing from the lexicon makes the phrase unmatchable
// and short-circuits to an empty result.
func (r *Standard) Match(terms []string) ([]int, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	first, err := r.fetchPostings(terms[0])
	if err != nil {
		return nil, err
	}
	chains := make(map[int][][]int, len(first))
	for docID, positions := range first {
		chains[docID] = seedChains(positions)
	}

	for _, term := range terms[1:] {
		next, err := r.fetchPostings(term)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			return nil, nil
		}
		for docID, docChains := range chains {
			positions, ok := next[docID]
			if !ok {
				continue
			}
			chains[docID] = extendChains(docChains, positions, r.strategy)
		}
	}
	return matchedDocs(chains, len(terms)), nil
}

// fetchPostings decodes a term's whole block into doc id -> positions in
// store order. A duplicate doc group overwrites the earlier one. Unknown
// terms yield a nil map.
func (r *Standard) fetchPostings(term string) (map[int][]int, error) {
	entry := r.ix.Lexicon.Lookup(term)
	if entry == nil {
		return nil, nil
	}
	if err := r.ix.Store.Seek(entry.Offset); err != nil {
		return nil, err
	}
	postings := make(map[int][]int, entry.DocFreq)
	for i := 0; i < entry.DocFreq; i++ {
		docID, err := r.ix.Store.ReadInt()
		if err != nil {
			return nil, err
		}
		termFreq, err := r.ix.Store.ReadInt()
		if err != nil {
			return nil, err
		}
		positions := make([]int, termFreq)
		for p := range positions {
			if positions[p], err = r.ix.Store.ReadInt(); err != nil {
				return nil, err
			}
		}
		postings[docID] = positions
	}
	return postings, nil
}
