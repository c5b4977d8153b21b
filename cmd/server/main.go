// Command server exposes the phrase query engine over HTTP. It loads the
// prebuilt index artifacts for every available variant and serves
// /api/v1/phrase, with Redis caching, Kafka-backed analytics, and a
// PostgreSQL audit log when those backends are reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/phraselab/phrase-search-platform/internal/analytics"
	aggstore "github.com/phraselab/phrase-search-platform/internal/analytics/aggregator"
	batch "github.com/phraselab/phrase-search-platform/internal/analytics/collector"
	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/internal/indexer"
	"github.com/phraselab/phrase-search-platform/internal/searcher"
	"github.com/phraselab/phrase-search-platform/internal/searcher/cache"
	"github.com/phraselab/phrase-search-platform/internal/searcher/handler"
	"github.com/phraselab/phrase-search-platform/internal/searcher/resolver"
	"github.com/phraselab/phrase-search-platform/pkg/config"
	"github.com/phraselab/phrase-search-platform/pkg/health"
	"github.com/phraselab/phrase-search-platform/pkg/kafka"
	"github.com/phraselab/phrase-search-platform/pkg/logger"
	"github.com/phraselab/phrase-search-platform/pkg/metrics"
	"github.com/phraselab/phrase-search-platform/pkg/middleware"
	"github.com/phraselab/phrase-search-platform/pkg/postgres"
	pkgredis "github.com/phraselab/phrase-search-platform/pkg/redis"
	"github.com/phraselab/phrase-search-platform/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting phrase query service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	defaultVariant, err := indexer.ParseVariant(cfg.Search.DefaultVariant)
	if err != nil {
		slog.Error("invalid default variant", "variant", cfg.Search.DefaultVariant, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	// Open every variant whose artifacts exist. Serving can run on a single
	// variant; queries naming the missing one get a 404.
	indexes := make(map[indexer.Variant]*indexer.Index)
	resolvers := make(map[indexer.Variant]searcher.Resolver)
	for _, v := range indexer.Variants {
		ix, err := indexer.OpenIndex(cfg.Index.DataDir, v)
		if err != nil {
			slog.Warn("index variant not available", "variant", v, "error", err)
			continue
		}
		defer ix.Close()
		indexes[v] = ix
		if v == indexer.VariantNextword {
			resolvers[v] = resolver.NewNextword(ix, resolver.ChainMerge)
		} else {
			resolvers[v] = resolver.NewStandard(ix, resolver.ChainMerge)
		}
		slog.Info("index loaded",
			"variant", v,
			"docs", ix.Lexicon.Metadata.NumberOfDocs,
			"vocabulary", ix.Lexicon.Metadata.VocabularySize,
		)
		if m != nil {
			m.IndexSizeBytes.WithLabelValues(string(v), "inverted").Set(float64(ix.Lexicon.Metadata.InvertedFile.FileSizeB))
			m.IndexVocabularySize.WithLabelValues(string(v)).Set(float64(ix.Lexicon.Metadata.VocabularySize))
		}
	}
	if len(indexes) == 0 {
		slog.Error("no index variants found", "data_dir", cfg.Index.DataDir)
		os.Exit(1)
	}
	if _, ok := resolvers[defaultVariant]; !ok {
		slog.Warn("default variant index not loaded", "variant", defaultVariant)
	}

	// All loaded variants were built from the same collection, so any
	// lexicon's stemming flag tells us how to normalise queries.
	stemmed := cfg.Index.Stem
	for _, ix := range indexes {
		stemmed = ix.Lexicon.Metadata.Stemmed
		break
	}
	normalizer := collection.NewNormalizer(stemmed)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	err = resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		var rerr error
		redisClient, rerr = pkgredis.NewClient(cfg.Redis)
		return rerr
	})
	if err != nil {
		slog.Warn("redis unavailable, phrase caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("phrase cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var pgClient *postgres.Client
	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		var perr error
		pgClient, perr = postgres.New(cfg.Postgres)
		return perr
	})
	if err != nil {
		slog.Warn("postgres unavailable, query audit disabled", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
		slog.Info("query audit log enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	defer producer.Close()

	var tracker analytics.Tracker
	if cfg.Analytics.BatchSize > 1 {
		bc := batch.NewBatchCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		bc.Start(ctx)
		defer bc.Close()
		tracker = bc
	} else {
		c := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		c.Start(ctx)
		defer c.Close()
		tracker = c
	}
	slog.Info("query event collector started",
		"topic", cfg.Kafka.Topics.QueryEvents,
		"batch_size", cfg.Analytics.BatchSize,
	)

	aggregator := analytics.NewAggregator()
	eventsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := eventsConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	defer eventsConsumer.Close()
	analyticsH := analytics.NewHandler(aggregator)

	if pgClient != nil {
		store := aggstore.NewStore(pgClient)
		store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		slog.Info("analytics snapshots enabled", "interval", cfg.Analytics.SnapshotInterval)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if len(resolvers) == len(indexer.Variants) {
			return health.ComponentHealth{Status: health.StatusUp, Message: "all variants loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusDegraded,
			Message: fmt.Sprintf("%d of %d variants loaded", len(resolvers), len(indexer.Variants)),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(resolvers, normalizer, queryCache, tracker, pgClient, m, defaultVariant, cfg.Search.MaxQueryTerms)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/phrase", h.Phrase)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("phrase query service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("phrase query service stopped")
}
