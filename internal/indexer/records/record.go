// Package records defines the intermediate posting-record stream: the sorted
// text file sitting between collection normalisation and index construction.
// Each line carries one term's (or term pair's) positions in one document;
// the file's first line is a JSON metadata header.
package records

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// EndOfDocTerm is the next-term recorded for a document's final token, which
// has no successor. Normalisation strips non-letters, so no real term can
// collide with it.
const EndOfDocTerm = "_"

// Record is one standard-index posting record: every position of a term in
// one document.
type Record struct {
	Term      string
	DocID     int
	Positions []int
}

// PairRecord is one nextword-index posting record: every position where First
// is immediately followed by Next in one document. Positions are those of the
// first term.
type PairRecord struct {
	First     string
	Next      string
	DocID     int
	Positions []int
}

// ParseStandard parses a line of the form "term,doc_id,pos1,pos2,...".
func ParseStandard(line string) (Record, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Record{}, fmt.Errorf("%w: want term,doc_id,positions..., got %d fields",
			apperrors.ErrMalformedRecord, len(parts))
	}
	docID, err := strconv.Atoi(parts[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: doc id %q", apperrors.ErrMalformedRecord, parts[1])
	}
	positions, err := parsePositions(parts[2:])
	if err != nil {
		return Record{}, err
	}
	return Record{Term: parts[0], DocID: docID, Positions: positions}, nil
}

// ParseNextword parses a line of the form
// "first_term,0,next_term,doc_id,pos1,pos2,...". The second field is a sort
// key keeping lines grouped by first term ahead of next term; it carries no
// meaning and is not inspected.
func ParseNextword(line string) (PairRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 5 {
		return PairRecord{}, fmt.Errorf("%w: want first,0,next,doc_id,positions..., got %d fields",
			apperrors.ErrMalformedRecord, len(parts))
	}
	docID, err := strconv.Atoi(parts[3])
	if err != nil {
		return PairRecord{}, fmt.Errorf("%w: doc id %q", apperrors.ErrMalformedRecord, parts[3])
	}
	positions, err := parsePositions(parts[4:])
	if err != nil {
		return PairRecord{}, err
	}
	return PairRecord{First: parts[0], Next: parts[2], DocID: docID, Positions: positions}, nil
}

func parsePositions(fields []string) ([]int, error) {
	positions := make([]int, len(fields))
	for i, field := range fields {
		pos, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: position %q", apperrors.ErrMalformedRecord, field)
		}
		positions[i] = pos
	}
	return positions, nil
}
