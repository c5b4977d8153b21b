// Package searcher runs phrase queries against a built index and writes
// result files. Matching itself lives in the resolver subpackage; this
// package handles query ingestion, batch execution, and result encoding.
package searcher

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/phraselab/phrase-search-platform/internal/collection"
)

// Resolver answers a single phrase query with the matching document ids in
// ascending order.
type Resolver interface {
	Match(terms []string) ([]int, error)
}

// PhraseResult is the served form of one resolved phrase query.
type PhraseResult struct {
	Query        string   `json:"query"`
	Variant      string   `json:"variant"`
	Terms        []string `json:"terms"`
	Matches      []int    `json:"matches"`
	TotalMatches int      `json:"total_matches"`
}

// Query is one normalized phrase query.
type Query struct {
	ID    int
	Terms []string
}

// Stats summarises a batch run.
type Stats struct {
	NumQueries int
	NumMatched int
	TotalTerms int
	Elapsed    time.Duration
}

// MeanQueryLength is the mean number of normalized terms per query.
func (s *Stats) MeanQueryLength() float64 {
	if s.NumQueries == 0 {
		return 0
	}
	return float64(s.TotalTerms) / float64(s.NumQueries)
}

// MeanQueryRuntime is the mean wall time per query in seconds.
func (s *Stats) MeanQueryRuntime() float64 {
	if s.NumQueries == 0 {
		return 0
	}
	return s.Elapsed.Seconds() / float64(s.NumQueries)
}

// ReadQueries parses a query file and normalizes each query with n. The
// normalizer must match the one the index was built with, stemming
// included, or terms will miss the lexicon.
func ReadQueries(path string, n *collection.Normalizer) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()

	docs, err := collection.ReadAll(bufio.NewReader(f), collection.TagQuery)
	if err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", path, err)
	}
	queries := make([]Query, 0, len(docs))
	for _, doc := range docs {
		queries = append(queries, Query{ID: doc.ID, Terms: n.Terms(doc.Text)})
	}
	return queries, nil
}

// Runner executes query batches against one resolver.
type Runner struct {
	logger *slog.Logger
}

func NewRunner() *Runner {
	return &Runner{
		logger: slog.Default().With("component", "searcher"),
	}
}

// Run resolves every query in order and writes one result line per query
// to resultsFile: the query id, then the matching documents ascending, or
// nothing after the comma when the phrase matches no document.
func (r *Runner) Run(ctx context.Context, resolver Resolver, queries []Query, resultsFile string) (*Stats, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(resultsFile), 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	tmp := resultsFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}
	w := bufio.NewWriterSize(f, 1<<20)

	fail := func(err error) (*Stats, error) {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}

	stats := &Stats{}
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		queryStart := time.Now()
		docs, err := resolver.Match(q.Terms)
		if err != nil {
			return fail(fmt.Errorf("query %d: %w", q.ID, err))
		}
		writeResultLine(w, q.ID, docs)

		stats.NumQueries++
		stats.TotalTerms += len(q.Terms)
		if len(docs) > 0 {
			stats.NumMatched++
		}
		r.logger.Debug("query resolved",
			"id", q.ID,
			"terms", len(q.Terms),
			"matches", len(docs),
			"elapsed", time.Since(queryStart),
		)
	}

	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing results file: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("syncing results file: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("closing results file: %w", err))
	}
	if err := os.Rename(tmp, resultsFile); err != nil {
		return nil, fmt.Errorf("renaming results file: %w", err)
	}

	stats.Elapsed = time.Since(start)
	r.logger.Info("query batch finished",
		"queries", stats.NumQueries,
		"matched", stats.NumMatched,
		"results_file", resultsFile,
		"elapsed", stats.Elapsed,
	)
	return stats, nil
}

// writeResultLine encodes one query result. bufio errors are sticky, so
// they surface at the final Flush.
func writeResultLine(w *bufio.Writer, queryID int, docs []int) {
	w.WriteString("Q")
	w.WriteString(strconv.Itoa(queryID))
	w.WriteByte(',')
	for i, doc := range docs {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString("P")
		w.WriteString(strconv.Itoa(doc))
	}
	w.WriteByte('\n')
}
