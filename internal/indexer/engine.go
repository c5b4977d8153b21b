// Package indexer orchestrates index construction. A build streams the
// tagged collection into a sorted record file, then replays that file
// through a variant builder to produce the lexicon and binary postings
// store. Built artifacts are reopened read-only for query resolution.
package indexer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/internal/indexer/builder"
	"github.com/phraselab/phrase-search-platform/internal/indexer/lexicon"
	"github.com/phraselab/phrase-search-platform/internal/indexer/postings"
	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// Variant selects one of the two index strategies.
type Variant string

const (
	VariantStandard Variant = "standard"
	VariantNextword Variant = "nextword"
)

// Variants lists every build variant in processing order.
var Variants = []Variant{VariantStandard, VariantNextword}

// ParseVariant validates a variant name from a flag or query parameter.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantStandard, VariantNextword:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("%w: unknown index variant %q", apperrors.ErrInvalidQuery, s)
	}
}

// Paths locates the on-disk artifacts of one index variant under the output
// directory.
type Paths struct {
	Dir          string
	RecordFile   string
	LexiconFile  string
	InvertedFile string
	ResultsFile  string
}

// PathsFor returns the artifact layout for a variant: everything lives in
// <outputDir>/<variant>/.
func PathsFor(outputDir string, v Variant) Paths {
	dir := filepath.Join(outputDir, string(v))
	return Paths{
		Dir:          dir,
		RecordFile:   filepath.Join(dir, "records.txt"),
		LexiconFile:  filepath.Join(dir, "lexicon.json"),
		InvertedFile: filepath.Join(dir, "inverted.bin"),
		ResultsFile:  filepath.Join(dir, "results.txt"),
	}
}

// BuildOptions configures one index build.
type BuildOptions struct {
	CollectionFile string
	OutputDir      string
	Variant        Variant
	Stem           bool
	Rebuild        bool
}

const (
	// normalizeBatchSize is how many documents are normalised per parallel
	// batch while building the record file.
	normalizeBatchSize = 1024

	// maxRecordLine caps scanner buffers for record lines; one line holds
	// every position of a term in a single document.
	maxRecordLine = 1 << 26
)

// Engine builds index artifacts.
type Engine struct {
	logger *slog.Logger
}

func NewEngine() *Engine {
	return &Engine{
		logger: slog.Default().With("component", "indexer"),
	}
}

// Build creates the record file, postings store, and lexicon for one
// variant. When all three artifacts already exist the build is skipped
// unless Rebuild is set. It reports whether a build actually ran.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (bool, error) {
	paths := PathsFor(opts.OutputDir, opts.Variant)
	if !opts.Rebuild && artifactsExist(paths) {
		e.logger.Info("index artifacts exist, skipping build",
			"variant", string(opts.Variant),
			"dir", paths.Dir,
		)
		return false, nil
	}

	start := time.Now()
	if err := e.buildRecordFile(ctx, opts, paths); err != nil {
		return false, err
	}
	if err := e.buildIndex(ctx, opts, paths); err != nil {
		return false, err
	}
	e.logger.Info("index built",
		"variant", string(opts.Variant),
		"dir", paths.Dir,
		"elapsed", time.Since(start),
	)
	return true, nil
}

func artifactsExist(paths Paths) bool {
	for _, p := range []string{paths.RecordFile, paths.LexiconFile, paths.InvertedFile} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// buildRecordFile streams the collection through the normaliser in parallel
// batches and writes the sorted record file.
func (e *Engine) buildRecordFile(ctx context.Context, opts BuildOptions, paths Paths) error {
	start := time.Now()
	source, err := records.StatFile(opts.CollectionFile)
	if err != nil {
		return err
	}
	f, err := os.Open(opts.CollectionFile)
	if err != nil {
		return fmt.Errorf("opening collection file: %w", err)
	}
	defer f.Close()

	normalizer := collection.NewNormalizer(opts.Stem)
	fb := records.NewFileBuilder(normalizer, source, opts.Variant == VariantNextword)

	reader := collection.NewReader(bufio.NewReaderSize(f, 1<<20), collection.TagDocument)
	batch := make([]collection.Document, 0, normalizeBatchSize)
	for {
		doc, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", opts.CollectionFile, err)
		}
		batch = append(batch, doc)
		if len(batch) == normalizeBatchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fb.AddBatch(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := fb.AddBatch(batch); err != nil {
		return err
	}

	if err := fb.WriteFile(paths.RecordFile); err != nil {
		return err
	}
	e.logger.Info("record file written",
		"variant", string(opts.Variant),
		"docs", fb.NumDocs(),
		"path", paths.RecordFile,
		"elapsed", time.Since(start),
	)
	return nil
}

// buildIndex replays the record file through a builder, then persists the
// lexicon with its final metadata.
func (e *Engine) buildIndex(ctx context.Context, opts BuildOptions, paths Paths) error {
	start := time.Now()
	f, err := os.Open(paths.RecordFile)
	if err != nil {
		return fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	store, err := postings.Create(paths.InvertedFile)
	if err != nil {
		return err
	}

	lex := lexicon.New()
	var b interface {
		ProcessLine(line string) error
		Finish() error
	}
	if opts.Variant == VariantNextword {
		b = builder.NewNextword(lex, store)
	} else {
		b = builder.NewStandard(lex, store)
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), maxRecordLine)

	if !sc.Scan() {
		store.Discard()
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading record file: %w", err)
		}
		return fmt.Errorf("%w: record file %s has no metadata line",
			apperrors.ErrMalformedRecord, paths.RecordFile)
	}
	meta, err := records.ParseMetadata(sc.Bytes())
	if err != nil {
		store.Discard()
		return err
	}

	lineNum := 1
	for sc.Scan() {
		lineNum++
		if err := b.ProcessLine(sc.Text()); err != nil {
			store.Discard()
			return fmt.Errorf("record file %s line %d: %w", paths.RecordFile, lineNum, err)
		}
		if lineNum%65536 == 0 {
			if err := ctx.Err(); err != nil {
				store.Discard()
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		store.Discard()
		return fmt.Errorf("reading record file: %w", err)
	}
	if err := b.Finish(); err != nil {
		store.Discard()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	lex.Metadata.Metadata = meta
	lex.Metadata.VocabularySize = len(lex.Terms)
	recInfo, err := records.StatFile(paths.RecordFile)
	if err != nil {
		return err
	}
	invInfo, err := records.StatFile(paths.InvertedFile)
	if err != nil {
		return err
	}
	lex.Metadata.RecordFile = recInfo
	lex.Metadata.InvertedFile = invInfo
	if err := lex.Save(paths.LexiconFile); err != nil {
		return err
	}

	e.logger.Info("lexicon and postings store written",
		"variant", string(opts.Variant),
		"terms", len(lex.Terms),
		"store_bytes", invInfo.FileSizeB,
		"records", lineNum-1,
		"elapsed", time.Since(start),
	)
	return nil
}
