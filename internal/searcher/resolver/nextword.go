package resolver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phraselab/phrase-search-platform/internal/indexer"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// anyNextTerm makes findPostings decode every group of a block regardless
// of the following term; single-term queries use it. The empty string can
// never be an indexed term.
const anyNextTerm = ""

// termPair is an adjacent (first, next) pair drawn from the query.
type termPair struct {
	first string
	next  string
}

// Nextword matches phrases against a pair index. Each query pair maps to
// one group inside the first term's block, so whole-phrase evidence is
// stitched together from pair postings instead of full term postings.
type Nextword struct {
	ix       *indexer.Index
	strategy ChainStrategy

	// The store keeps a single cursor, so resolutions are serialised.
	mu sync.Mutex
}

// NewNextword returns a resolver over ix, which must hold a nextword-variant
// index.
func NewNextword(ix *indexer.Index, strategy ChainStrategy) *Nextword {
	return &Nextword{ix: ix, strategy: strategy}
}

// Match returns the ids of documents containing terms as an exact phrase,
// ascending. A term or adjacent pair absent from the index makes the phrase
// unmatchable and short-circuits to an empty result.
func (r *Nextword) Match(terms []string) ([]int, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(terms) == 1 {
		postings, err := r.findPostings(terms[0], anyNextTerm)
		if err != nil {
			return nil, err
		}
		docs := make([]int, 0, len(postings))
		for docID := range postings {
			docs = append(docs, docID)
		}
		sort.Ints(docs)
		return docs, nil
	}
	return r.matchPhrase(terms)
}

func (r *Nextword) matchPhrase(terms []string) ([]int, error) {
	pairs := make([]termPair, 0, len(terms)-1)
	freqByPair := make(map[termPair]int, len(terms)-1)
	for i := 0; i < len(terms)-1; i++ {
		entry := r.ix.Lexicon.Lookup(terms[i])
		if entry == nil || r.ix.Lexicon.Lookup(terms[i+1]) == nil {
			return nil, nil
		}
		pair := termPair{first: terms[i], next: terms[i+1]}
		pairs = append(pairs, pair)
		freqByPair[pair] = entry.CollectionFreq
	}

	// Fetch rare pairs first, using the first term's collection frequency
	// as the selectivity proxy. Ties keep query order.
	ordered := make([]termPair, 0, len(freqByPair))
	seen := make(map[termPair]bool, len(freqByPair))
	for _, pair := range pairs {
		if !seen[pair] {
			seen[pair] = true
			ordered = append(ordered, pair)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return freqByPair[ordered[i]] < freqByPair[ordered[j]]
	})

	// Every term is covered once both pairs flanking it are fetched (one
	// for the phrase edges); stop seeking as soon as that holds.
	covered := make([]bool, len(terms))
	fetched := make(map[termPair]map[int][]int, len(ordered))
	for _, pair := range ordered {
		postings, err := r.findPostings(pair.first, pair.next)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			return nil, nil
		}
		fetched[pair] = postings
		for i, queryPair := range pairs {
			if queryPair == pair {
				covered[i] = true
				covered[i+1] = true
			}
		}
		if allCovered(covered) {
			break
		}
	}

	// A pair posting at (doc, pos) places the first term at pos and the
	// second at pos+1. Decompose into per-term position sets, then run the
	// same chain extension as the standard variant.
	byTerm := make(map[string]map[int]map[int]struct{}, len(terms))
	for pair, postings := range fetched {
		for docID, positions := range postings {
			for _, pos := range positions {
				addPosition(byTerm, pair.first, docID, pos)
				addPosition(byTerm, pair.next, docID, pos+1)
			}
		}
	}
	perTerm := make(map[string]map[int][]int, len(byTerm))
	for term, docs := range byTerm {
		byDoc := make(map[int][]int, len(docs))
		for docID, posSet := range docs {
			byDoc[docID] = sortedPositions(posSet)
		}
		perTerm[term] = byDoc
	}

	chains := make(map[int][][]int, len(perTerm[terms[0]]))
	for docID, positions := range perTerm[terms[0]] {
		chains[docID] = seedChains(positions)
	}
	for _, term := range terms[1:] {
		termPositions := perTerm[term]
		for docID, docChains := range chains {
			positions, ok := termPositions[docID]
			if !ok {
				continue
			}
			chains[docID] = extendChains(docChains, positions, r.strategy)
		}
	}
	return matchedDocs(chains, len(terms)), nil
}

// findPostings reads first's block, decoding the groups whose next term
// matches next and skip-scanning the rest: each skipped doc costs two
// header reads and a jump over its position payload. anyNextTerm decodes
// every group; a duplicate doc id across decoded groups overwrites.
func (r *Nextword) findPostings(first, next string) (map[int][]int, error) {
	entry := r.ix.Lexicon.Lookup(first)
	if entry == nil {
		return nil, nil
	}
	if err := r.ix.Store.Seek(entry.Offset); err != nil {
		return nil, err
	}
	postings := make(map[int][]int)
	for g := 0; g < entry.NumNextTerms; g++ {
		nextID, err := r.ix.Store.ReadInt()
		if err != nil {
			return nil, err
		}
		groupNext, ok := r.ix.Lexicon.NextTerm(nextID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown next-term id %d in block for %q", apperrors.ErrCorruptIndex, nextID, first)
		}
		pairDocFreq, err := r.ix.Store.ReadInt()
		if err != nil {
			return nil, err
		}
		if next != anyNextTerm && groupNext != next {
			for d := 0; d < pairDocFreq; d++ {
				if err := r.ix.Store.Skip(1); err != nil {
					return nil, err
				}
				count, err := r.ix.Store.ReadInt()
				if err != nil {
					return nil, err
				}
				if err := r.ix.Store.Skip(count); err != nil {
					return nil, err
				}
			}
			continue
		}
		for d := 0; d < pairDocFreq; d++ {
			docID, err := r.ix.Store.ReadInt()
			if err != nil {
				return nil, err
			}
			count, err := r.ix.Store.ReadInt()
			if err != nil {
				return nil, err
			}
			positions := make([]int, count)
			for p := range positions {
				if positions[p], err = r.ix.Store.ReadInt(); err != nil {
					return nil, err
				}
			}
			postings[docID] = positions
		}
	}
	return postings, nil
}

func addPosition(byTerm map[string]map[int]map[int]struct{}, term string, docID, pos int) {
	docs, ok := byTerm[term]
	if !ok {
		docs = make(map[int]map[int]struct{})
		byTerm[term] = docs
	}
	posSet, ok := docs[docID]
	if !ok {
		posSet = make(map[int]struct{})
		docs[docID] = posSet
	}
	posSet[pos] = struct{}{}
}

func sortedPositions(posSet map[int]struct{}) []int {
	positions := make([]int, 0, len(posSet))
	for pos := range posSet {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions
}

func allCovered(covered []bool) bool {
	for _, c := range covered {
		if !c {
			return false
		}
	}
	return true
}
