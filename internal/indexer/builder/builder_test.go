package builder

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/phraselab/phrase-search-platform/internal/indexer/lexicon"
	"github.com/phraselab/phrase-search-platform/internal/indexer/postings"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

func newStore(t *testing.T) (*postings.Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inverted.bin")
	w, err := postings.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w, path
}

func storeValues(t *testing.T, path string) []int {
	t.Helper()
	r, err := postings.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	values := make([]int, 0, r.Units())
	for i := int64(0); i < r.Units(); i++ {
		v, err := r.ReadInt()
		if err != nil {
			t.Fatalf("ReadInt %d: %v", i, err)
		}
		values = append(values, v)
	}
	return values
}

// TestStandardBuilder verifies lexicon entries, block layout, and the
// offset-integrity property: a term's block occupies exactly
// 2*doc_freq + collection_freq units.
func TestStandardBuilder(t *testing.T) {
	store, path := newStore(t)
	lex := lexicon.New()
	b := NewStandard(lex, store)

	lines := []string{
		"a,1,0",
		"a,2,1,3",
		"b,1,2",
	}
	for _, line := range lines {
		if err := b.ProcessLine(line); err != nil {
			t.Fatalf("ProcessLine(%q): %v", line, err)
		}
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a := lex.Lookup("a")
	if a == nil || a.DocFreq != 2 || a.CollectionFreq != 3 || a.Offset != 0 {
		t.Errorf("entry a = %+v", a)
	}
	bEntry := lex.Lookup("b")
	if bEntry == nil || bEntry.DocFreq != 1 || bEntry.CollectionFreq != 1 {
		t.Errorf("entry b = %+v", bEntry)
	}
	if a != nil && bEntry != nil {
		blockUnits := int64(2*a.DocFreq + a.CollectionFreq)
		if bEntry.Offset != a.Offset+blockUnits {
			t.Errorf("b offset = %d, want %d", bEntry.Offset, a.Offset+blockUnits)
		}
	}

	want := []int{
		1, 1, 0, // doc 1: one occurrence at 0
		2, 2, 1, 3, // doc 2: two occurrences
		1, 1, 2, // term b, doc 1
	}
	if got := storeValues(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("store = %v, want %v", got, want)
	}
}

// TestNextwordBuilderFlushProtocol walks the three flush triggers: next-term
// change, first-term change, and end of stream.
func TestNextwordBuilderFlushProtocol(t *testing.T) {
	store, path := newStore(t)
	lex := lexicon.New()
	b := NewNextword(lex, store)

	lines := []string{
		"a,0,b,1,0",
		"a,0,b,2,5,7", // same pair, second document: merged into the group
		"a,0,c,1,2",   // next-term change: flushes (a,b)
		"b,0,_,9,4",   // first-term change: flushes (a,c) before b's offset
	}
	for _, line := range lines {
		if err := b.ProcessLine(line); err != nil {
			t.Fatalf("ProcessLine(%q): %v", line, err)
		}
	}
	if err := b.Finish(); err != nil { // end of stream: flushes (b,_)
		t.Fatalf("Finish: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a := lex.Lookup("a")
	if a == nil || a.DocFreq != 3 || a.CollectionFreq != 4 || a.NumNextTerms != 2 || a.Offset != 0 {
		t.Errorf("entry a = %+v", a)
	}
	bEntry := lex.Lookup("b")
	if bEntry == nil || bEntry.DocFreq != 1 || bEntry.NumNextTerms != 1 || bEntry.Offset != 14 {
		t.Errorf("entry b = %+v", bEntry)
	}

	// Term ids assigned in first-seen order across (first, next) fields.
	wantIDs := map[int]string{0: "a", 1: "b", 2: "c", 3: "_"}
	if !reflect.DeepEqual(lex.TermIDs, wantIDs) {
		t.Errorf("TermIDs = %v, want %v", lex.TermIDs, wantIDs)
	}

	want := []int{
		1, 2, 1, 1, 0, 2, 2, 5, 7, // group (a,b): id 1, two docs
		2, 1, 1, 1, 2, // group (a,c): id 2, one doc
		3, 1, 9, 1, 4, // group (b,_): id 3, one doc
	}
	if got := storeValues(t, path); !reflect.DeepEqual(got, want) {
		t.Errorf("store = %v, want %v", got, want)
	}
}

// TestNextwordBuilderEmptyStream verifies Finish is safe with no records.
func TestNextwordBuilderEmptyStream(t *testing.T) {
	store, path := newStore(t)
	b := NewNextword(lexicon.New(), store)

	if err := b.Finish(); err != nil {
		t.Fatalf("Finish on empty stream: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := storeValues(t, path); len(got) != 0 {
		t.Errorf("store = %v, want empty", got)
	}
}

// TestBuilderMalformedLines verifies construction aborts on bad input.
func TestBuilderMalformedLines(t *testing.T) {
	store, _ := newStore(t)
	defer store.Discard()
	lex := lexicon.New()

	std := NewStandard(lex, store)
	if err := std.ProcessLine("cat,notanumber,0"); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Errorf("standard ProcessLine = %v, want ErrMalformedRecord", err)
	}

	nw := NewNextword(lexicon.New(), store)
	if err := nw.ProcessLine("cat,0,sat"); !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Errorf("nextword ProcessLine = %v, want ErrMalformedRecord", err)
	}
}
