package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

func writeCollection(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "collection.txt")
	content := "<P ID=0>\nthe cat sat on the mat\n</P>\n<P ID=1>\nthe dog sat\n</P>\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing collection: %v", err)
	}
	return path
}

// TestBuildAndOpenStandard builds a standard index over a tiny collection
// and verifies the persisted lexicon and metadata.
func TestBuildAndOpenStandard(t *testing.T) {
	dir := t.TempDir()
	collectionFile := writeCollection(t, dir)
	outputDir := filepath.Join(dir, "out")

	e := NewEngine()
	built, err := e.Build(context.Background(), BuildOptions{
		CollectionFile: collectionFile,
		OutputDir:      outputDir,
		Variant:        VariantStandard,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !built {
		t.Fatal("Build reported skip on first run")
	}

	ix, err := OpenIndex(outputDir, VariantStandard)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	meta := ix.Lexicon.Metadata
	if meta.NumberOfDocs != 2 {
		t.Errorf("NumberOfDocs = %d, want 2", meta.NumberOfDocs)
	}
	if meta.CollectionSize != 9 {
		t.Errorf("CollectionSize = %d, want 9", meta.CollectionSize)
	}
	if meta.VocabularySize != 6 {
		t.Errorf("VocabularySize = %d, want 6", meta.VocabularySize)
	}
	if meta.InvertedFile.FileSizeB != ix.Store.SizeBytes() {
		t.Errorf("metadata store size %d != actual %d", meta.InvertedFile.FileSizeB, ix.Store.SizeBytes())
	}

	the := ix.Lexicon.Lookup("the")
	if the == nil || the.DocFreq != 2 || the.CollectionFreq != 3 {
		t.Errorf("entry the = %+v", the)
	}
	sat := ix.Lexicon.Lookup("sat")
	if sat == nil || sat.DocFreq != 2 || sat.CollectionFreq != 2 {
		t.Errorf("entry sat = %+v", sat)
	}
	if ix.Lexicon.Lookup("absent") != nil {
		t.Error("unexpected entry for absent term")
	}
	if ix.Lexicon.TermIDs != nil {
		t.Error("standard index carries a term-id table")
	}
}

// TestBuildAndOpenNextword verifies the pair index builds and records
// next-term group counts and the term-id table.
func TestBuildAndOpenNextword(t *testing.T) {
	dir := t.TempDir()
	collectionFile := writeCollection(t, dir)
	outputDir := filepath.Join(dir, "out")

	e := NewEngine()
	if _, err := e.Build(context.Background(), BuildOptions{
		CollectionFile: collectionFile,
		OutputDir:      outputDir,
		Variant:        VariantNextword,
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	ix, err := OpenIndex(outputDir, VariantNextword)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	// "the" is followed by cat, mat, and dog across the two documents.
	the := ix.Lexicon.Lookup("the")
	if the == nil || the.NumNextTerms != 3 {
		t.Errorf("entry the = %+v", the)
	}
	// "sat": "sat on" in doc 0, "sat" ends doc 1 so it pairs with the
	// end-of-document sentinel.
	sat := ix.Lexicon.Lookup("sat")
	if sat == nil || sat.NumNextTerms != 2 {
		t.Errorf("entry sat = %+v", sat)
	}
	if len(ix.Lexicon.TermIDs) == 0 {
		t.Fatal("nextword index has no term-id table")
	}
	seen := make(map[string]bool)
	for _, term := range ix.Lexicon.TermIDs {
		seen[term] = true
	}
	if !seen["_"] {
		t.Error("term-id table is missing the end-of-document sentinel")
	}
}

// TestBuildSkipsExistingArtifacts verifies the rebuild semantics: skip when
// everything exists, rebuild when forced.
func TestBuildSkipsExistingArtifacts(t *testing.T) {
	dir := t.TempDir()
	collectionFile := writeCollection(t, dir)
	outputDir := filepath.Join(dir, "out")
	opts := BuildOptions{
		CollectionFile: collectionFile,
		OutputDir:      outputDir,
		Variant:        VariantStandard,
	}

	e := NewEngine()
	if _, err := e.Build(context.Background(), opts); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	built, err := e.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if built {
		t.Error("second Build did not skip existing artifacts")
	}

	// Removing any one artifact forces a rebuild.
	if err := os.Remove(PathsFor(outputDir, VariantStandard).LexiconFile); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	built, err = e.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if !built {
		t.Error("Build skipped with a missing artifact")
	}

	opts.Rebuild = true
	built, err = e.Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("forced Build: %v", err)
	}
	if !built {
		t.Error("forced rebuild was skipped")
	}
}

// TestOpenIndexDetectsSizeMismatch verifies the store/lexicon cross-check.
func TestOpenIndexDetectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	collectionFile := writeCollection(t, dir)
	outputDir := filepath.Join(dir, "out")

	e := NewEngine()
	if _, err := e.Build(context.Background(), BuildOptions{
		CollectionFile: collectionFile,
		OutputDir:      outputDir,
		Variant:        VariantStandard,
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Truncate the store to a still-aligned but wrong size.
	invPath := PathsFor(outputDir, VariantStandard).InvertedFile
	if err := os.Truncate(invPath, 8); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	_, err := OpenIndex(outputDir, VariantStandard)
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("OpenIndex = %v, want ErrCorruptIndex", err)
	}
}

// TestOpenIndexMissing verifies missing artifacts map to ErrIndexNotFound.
func TestOpenIndexMissing(t *testing.T) {
	_, err := OpenIndex(t.TempDir(), VariantStandard)
	if !errors.Is(err, apperrors.ErrIndexNotFound) {
		t.Errorf("OpenIndex = %v, want ErrIndexNotFound", err)
	}
}

// TestParseVariant accepts the two known variants and rejects the rest.
func TestParseVariant(t *testing.T) {
	for _, name := range []string{"standard", "nextword"} {
		v, err := ParseVariant(name)
		if err != nil || string(v) != name {
			t.Errorf("ParseVariant(%q) = %v, %v", name, v, err)
		}
	}
	if _, err := ParseVariant("biword"); !errors.Is(err, apperrors.ErrInvalidQuery) {
		t.Errorf("ParseVariant(biword) = %v, want ErrInvalidQuery", err)
	}
}
