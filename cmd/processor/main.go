// Command processor runs the full phrase-query pipeline for both index
// variants: build (or reuse) the index artifacts, execute the query batch,
// and write a metrics.csv comparing the standard and nextword runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/internal/indexer"
	"github.com/phraselab/phrase-search-platform/internal/indexer/records"
	"github.com/phraselab/phrase-search-platform/internal/report"
	"github.com/phraselab/phrase-search-platform/internal/searcher"
	"github.com/phraselab/phrase-search-platform/internal/searcher/resolver"
	"github.com/phraselab/phrase-search-platform/pkg/logger"
	"github.com/phraselab/phrase-search-platform/pkg/tracing"
)

type options struct {
	CollectionFile string
	QueriesFile    string
	OutputDir      string
	Stem           bool
	Rebuild        bool
	CPUProfile     string
}

func main() {
	var opts options
	flag.StringVar(&opts.CollectionFile, "collection", "", "path to the tagged collection file")
	flag.StringVar(&opts.QueriesFile, "queries", "", "path to the tagged query file")
	flag.StringVar(&opts.OutputDir, "output", "", "directory for index artifacts, results, and metrics.csv")
	flag.BoolVar(&opts.Stem, "stem", false, "apply Snowball stemming when building and querying")
	flag.BoolVar(&opts.Rebuild, "rebuild", false, "rebuild index artifacts even when they already exist")
	flag.StringVar(&opts.CPUProfile, "cpuprofile", "", "write a CPU profile to this file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if opts.CollectionFile == "" || opts.QueriesFile == "" || opts.OutputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: processor -collection FILE -queries FILE -output DIR [-stem] [-rebuild]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger.Setup(level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("processor failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.CPUProfile != "" {
		f, err := os.Create(opts.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, span := tracing.StartSpan(ctx, "phrase-processor", "")
	defer func() {
		span.End()
		span.Log()
	}()
	span.SetAttr("output_dir", opts.OutputDir)

	slog.Info("processing collection",
		"collection", opts.CollectionFile,
		"queries", opts.QueriesFile,
		"output", opts.OutputDir,
		"stem", opts.Stem,
	)

	engine := indexer.NewEngine()
	var std, nw report.Variant
	for _, v := range indexer.Variants {
		rv, err := processVariant(ctx, engine, v, opts)
		if err != nil {
			return fmt.Errorf("%s variant: %w", v, err)
		}
		if v == indexer.VariantNextword {
			nw = rv
		} else {
			std = rv
		}
	}

	metricsPath := filepath.Join(opts.OutputDir, "metrics.csv")
	if err := report.WriteCSV(metricsPath, filepath.Base(opts.OutputDir), std, nw); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	slog.Info("metrics written", "path", metricsPath)
	return nil
}

// processVariant builds one index variant, runs the query batch against it,
// and collects the figures metrics.csv reports.
func processVariant(ctx context.Context, engine *indexer.Engine, v indexer.Variant, opts options) (report.Variant, error) {
	ctx, span := tracing.StartChildSpan(ctx, string(v)+"-pipeline")
	defer span.End()

	log := slog.With("variant", string(v))

	buildStart := time.Now()
	built, err := engine.Build(ctx, indexer.BuildOptions{
		CollectionFile: opts.CollectionFile,
		OutputDir:      opts.OutputDir,
		Variant:        v,
		Stem:           opts.Stem,
		Rebuild:        opts.Rebuild,
	})
	if err != nil {
		return report.Variant{}, fmt.Errorf("build index: %w", err)
	}
	buildRuntime := time.Since(buildStart)
	span.SetAttr("built", built)
	if built {
		log.Info("index built", "elapsed", buildRuntime)
	} else {
		log.Info("index artifacts reused")
	}

	ix, err := indexer.OpenIndex(opts.OutputDir, v)
	if err != nil {
		return report.Variant{}, fmt.Errorf("open index: %w", err)
	}
	defer ix.Close()

	paths := indexer.PathsFor(opts.OutputDir, v)
	lexInfo, err := records.StatFile(paths.LexiconFile)
	if err != nil {
		return report.Variant{}, fmt.Errorf("stat lexicon: %w", err)
	}

	// Queries are normalised exactly the way the index was built, stemming
	// included, so query terms line up with lexicon terms.
	n := collection.NewNormalizer(ix.Lexicon.Metadata.Stemmed)
	queries, err := searcher.ReadQueries(opts.QueriesFile, n)
	if err != nil {
		return report.Variant{}, fmt.Errorf("read queries: %w", err)
	}

	var res searcher.Resolver
	if v == indexer.VariantNextword {
		res = resolver.NewNextword(ix, resolver.ChainMerge)
	} else {
		res = resolver.NewStandard(ix, resolver.ChainMerge)
	}

	stats, err := searcher.NewRunner().Run(ctx, res, queries, paths.ResultsFile)
	if err != nil {
		return report.Variant{}, fmt.Errorf("run queries: %w", err)
	}
	span.SetAttr("queries", stats.NumQueries)
	span.SetAttr("matched", stats.NumMatched)

	return report.Variant{
		NumberOfDocs:    ix.Lexicon.Metadata.NumberOfDocs,
		CollectionSize:  ix.Lexicon.Metadata.CollectionSize,
		VocabularySize:  ix.Lexicon.Metadata.VocabularySize,
		NumQueries:      stats.NumQueries,
		MeanQueryLength: stats.MeanQueryLength(),
		NumMatched:      stats.NumMatched,
		LexiconSizeB:    lexInfo.FileSizeB,
		InvertedSizeB:   ix.Lexicon.Metadata.InvertedFile.FileSizeB,
		BuildRuntime:    buildRuntime.Seconds(),
		QueryRuntime:    stats.Elapsed.Seconds(),
	}, nil
}
