package indexer

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/phraselab/phrase-search-platform/internal/indexer/lexicon"
	"github.com/phraselab/phrase-search-platform/internal/indexer/postings"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// Index is a read-only handle on one built variant: its lexicon plus an
// open postings reader. The reader carries a single cursor, so an Index must
// not serve concurrent queries; open one Index per worker instead.
type Index struct {
	Variant Variant
	Lexicon *lexicon.Lexicon
	Store   *postings.Reader
}

// OpenIndex loads a variant's lexicon and opens its postings store,
// cross-checking the store size recorded at build time.
func OpenIndex(outputDir string, v Variant) (*Index, error) {
	paths := PathsFor(outputDir, v)
	lex, err := lexicon.Load(paths.LexiconFile)
	if err != nil {
		return nil, err
	}
	store, err := postings.Open(paths.InvertedFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: postings store %s", apperrors.ErrIndexNotFound, paths.InvertedFile)
		}
		return nil, err
	}
	if want := lex.Metadata.InvertedFile.FileSizeB; want != store.SizeBytes() {
		store.Close()
		return nil, fmt.Errorf("%w: postings store is %d bytes but lexicon recorded %d",
			apperrors.ErrCorruptIndex, store.SizeBytes(), want)
	}
	return &Index{Variant: v, Lexicon: lex, Store: store}, nil
}

func (ix *Index) Close() error {
	return ix.Store.Close()
}
