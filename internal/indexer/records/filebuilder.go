package records

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/phraselab/phrase-search-platform/internal/collection"
)

// FileBuilder accumulates normalised documents and writes the sorted record
// file the index builder consumes. Sorting happens in memory, by (term,
// doc id) for the standard variant and (first, next, doc id) for nextword,
// so every record sharing a primary key ends up contiguous.
type FileBuilder struct {
	normalizer *collection.Normalizer
	source     FileInfo
	nextword   bool

	numDocs  int
	numWords int
	standard []Record
	pairs    []PairRecord
}

// NewFileBuilder returns a FileBuilder for the given variant. source is the
// collection file the documents come from, recorded in the metadata header.
func NewFileBuilder(n *collection.Normalizer, source FileInfo, nextword bool) *FileBuilder {
	return &FileBuilder{
		normalizer: n,
		source:     source,
		nextword:   nextword,
	}
}

// AddBatch normalises a batch of documents in parallel and folds their
// records into the builder in input order. Batches must be added from a
// single goroutine.
func (b *FileBuilder) AddBatch(docs []collection.Document) error {
	termLists := make([][]string, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			termLists[i] = b.normalizer.Terms(doc.Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, doc := range docs {
		b.addDocument(doc.ID, termLists[i])
	}
	return nil
}

// NumDocs returns the number of documents added so far, including empty ones.
func (b *FileBuilder) NumDocs() int {
	return b.numDocs
}

// Metadata returns the header the record file will carry.
func (b *FileBuilder) Metadata() Metadata {
	return Metadata{
		NumberOfDocs:   b.numDocs,
		CollectionSize: b.numWords,
		CollectionFile: b.source,
		Stemmed:        b.normalizer.Stemmed(),
	}
}

func (b *FileBuilder) addDocument(docID int, terms []string) {
	b.numDocs++
	if b.nextword {
		b.addPairRecords(docID, terms)
		return
	}
	positionsByTerm := make(map[string][]int, len(terms))
	for pos, term := range terms {
		positionsByTerm[term] = append(positionsByTerm[term], pos)
	}
	for term, positions := range positionsByTerm {
		b.standard = append(b.standard, Record{Term: term, DocID: docID, Positions: positions})
		b.numWords += len(positions)
	}
}

// addPairRecords groups a document's adjacent term pairs. The final token
// pairs with EndOfDocTerm so every position belongs to exactly one record.
func (b *FileBuilder) addPairRecords(docID int, terms []string) {
	type pairKey struct {
		first string
		next  string
	}
	positionsByPair := make(map[pairKey][]int, len(terms))
	for pos, first := range terms {
		next := EndOfDocTerm
		if pos+1 < len(terms) {
			next = terms[pos+1]
		}
		key := pairKey{first: first, next: next}
		positionsByPair[key] = append(positionsByPair[key], pos)
	}
	for key, positions := range positionsByPair {
		b.pairs = append(b.pairs, PairRecord{
			First:     key.first,
			Next:      key.next,
			DocID:     docID,
			Positions: positions,
		})
		b.numWords += len(positions)
	}
}

// WriteFile sorts the accumulated records and writes the record file: one
// JSON metadata line followed by one line per record. It writes to a .tmp
// file and renames on success.
func (b *FileBuilder) WriteFile(path string) error {
	b.sortRecords()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp record file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	header, err := json.Marshal(b.Metadata())
	if err != nil {
		return fmt.Errorf("marshaling record metadata: %w", err)
	}
	bw.Write(header)
	bw.WriteByte('\n')

	// bufio errors are sticky; one check at Flush covers every write.
	if b.nextword {
		for _, r := range b.pairs {
			writePairLine(bw, r)
		}
	} else {
		for _, r := range b.standard {
			writeRecordLine(bw, r)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing record file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing record file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming record file: %w", err)
	}
	return nil
}

func (b *FileBuilder) sortRecords() {
	if b.nextword {
		sort.Slice(b.pairs, func(i, j int) bool {
			a, c := b.pairs[i], b.pairs[j]
			if a.First != c.First {
				return a.First < c.First
			}
			if a.Next != c.Next {
				return a.Next < c.Next
			}
			return a.DocID < c.DocID
		})
		return
	}
	sort.Slice(b.standard, func(i, j int) bool {
		a, c := b.standard[i], b.standard[j]
		if a.Term != c.Term {
			return a.Term < c.Term
		}
		return a.DocID < c.DocID
	})
}

func writeRecordLine(bw *bufio.Writer, r Record) {
	bw.WriteString(r.Term)
	bw.WriteByte(',')
	bw.WriteString(strconv.Itoa(r.DocID))
	for _, pos := range r.Positions {
		bw.WriteByte(',')
		bw.WriteString(strconv.Itoa(pos))
	}
	bw.WriteByte('\n')
}

func writePairLine(bw *bufio.Writer, r PairRecord) {
	bw.WriteString(r.First)
	bw.WriteString(",0,")
	bw.WriteString(r.Next)
	bw.WriteByte(',')
	bw.WriteString(strconv.Itoa(r.DocID))
	for _, pos := range r.Positions {
		bw.WriteByte(',')
		bw.WriteString(strconv.Itoa(pos))
	}
	bw.WriteByte('\n')
}
