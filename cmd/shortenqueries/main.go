// Command shortenqueries rewrites a query file into shorter queries. All
// terms from the input queries are concatenated in order and regrouped into
// new queries whose lengths cycle through 3, 4, 5, 2. Useful for deriving a
// short-phrase workload from a long-query test set.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/pkg/logger"
)

func main() {
	input := flag.String("input", "", "path to the query file to shorten")
	output := flag.String("output", "", "path to write the shortened query file")
	stem := flag.Bool("stem", false, "apply Snowball stemming to terms")
	flag.Parse()

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "usage: shortenqueries -input FILE -output FILE [-stem]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger.Setup("info", "text")

	terms, err := readQueryTerms(*input, collection.NewNormalizer(*stem))
	if err != nil {
		slog.Error("failed to read queries", "path", *input, "error", err)
		os.Exit(1)
	}

	queries := regroup(terms)
	if err := writeQueries(*output, queries); err != nil {
		slog.Error("failed to write queries", "path", *output, "error", err)
		os.Exit(1)
	}

	slog.Info("queries shortened", "terms", len(terms), "queries", len(queries), "output", *output)
}

// readQueryTerms flattens every query in the file into one term stream,
// preserving order.
func readQueryTerms(path string, n *collection.Normalizer) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := collection.ReadAll(bufio.NewReader(f), collection.TagQuery)
	if err != nil {
		return nil, err
	}

	var terms []string
	for _, doc := range docs {
		terms = append(terms, n.Terms(doc.Text)...)
	}
	return terms, nil
}

// regroup chunks terms into queries of cycling length 3, 4, 5, 2. The final
// query keeps whatever terms remain, however few.
func regroup(terms []string) []string {
	var queries []string
	numTerms := 2
	for idx := 0; idx < len(terms); {
		numTerms++
		if numTerms == 6 {
			numTerms = 2
		}
		end := idx + numTerms
		if end > len(terms) {
			end = len(terms)
		}
		queries = append(queries, strings.Join(terms[idx:end], " "))
		idx = end
	}
	return queries
}

func writeQueries(path string, queries []string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for id, query := range queries {
		w.WriteString("<Q ID=")
		w.WriteString(strconv.Itoa(id))
		w.WriteString(">\n")
		w.WriteString(query)
		w.WriteString("\n</Q>\n\n")
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
