// Package resolver implements phrase matching over a built index: positional
// intersection for the standard variant and pair stitching with selective
// seeking for the nextword variant. Both reconstruct phrases by extending
// position chains term by term.
package resolver

import "sort"

// ChainStrategy controls what happens when several occurrences of the next
// term qualify as extensions of the same chain.
type ChainStrategy int

const (
	// ChainMerge appends every qualifying position to the same chain. The
	// chain's tail is read once before the scan, so duplicated positions in
	// a block can inflate a chain past the query length and the document
	// then fails the exact-length test. Kept as the default; treat it as a
	// documented limitation rather than correcting it silently.
	ChainMerge ChainStrategy = iota

	// ChainFork branches a fresh chain per qualifying position, leaving the
	// parent chain in place.
	ChainFork
)

// extendChains advances each chain by the positions immediately following
// its tail. positions may contain duplicates; callers that deduplicate
// first get at-most-one extension per chain under ChainMerge.
func extendChains(chains [][]int, positions []int, strategy ChainStrategy) [][]int {
	if strategy == ChainFork {
		return forkChains(chains, positions)
	}
	for i := range chains {
		last := chains[i][len(chains[i])-1]
		for _, pos := range positions {
			if pos == last+1 {
				chains[i] = append(chains[i], pos)
			}
		}
	}
	return chains
}

func forkChains(chains [][]int, positions []int) [][]int {
	var branches [][]int
	for _, chain := range chains {
		last := chain[len(chain)-1]
		for _, pos := range positions {
			if pos == last+1 {
				branch := make([]int, len(chain), len(chain)+1)
				copy(branch, chain)
				branches = append(branches, append(branch, pos))
			}
		}
	}
	return append(chains, branches...)
}

// matchedDocs collects the documents owning at least one chain of exactly
// the query length, ascending.
func matchedDocs(chains map[int][][]int, queryLen int) []int {
	var docs []int
	for docID, docChains := range chains {
		for _, chain := range docChains {
			if len(chain) == queryLen {
				docs = append(docs, docID)
				break
			}
		}
	}
	sort.Ints(docs)
	return docs
}

// seedChains turns a term's positions into single-element chains, one per
// occurrence.
func seedChains(positions []int) [][]int {
	chains := make([][]int, 0, len(positions))
	for _, pos := range positions {
		chains = append(chains, []int{pos})
	}
	return chains
}
