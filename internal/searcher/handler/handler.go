// Package handler serves phrase queries over HTTP, with optional caching,
// analytics tracking, and query auditing.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phraselab/phrase-search-platform/internal/analytics"
	"github.com/phraselab/phrase-search-platform/internal/collection"
	"github.com/phraselab/phrase-search-platform/internal/indexer"
	"github.com/phraselab/phrase-search-platform/internal/searcher"
	"github.com/phraselab/phrase-search-platform/internal/searcher/cache"
	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
	"github.com/phraselab/phrase-search-platform/pkg/logger"
	"github.com/phraselab/phrase-search-platform/pkg/metrics"
	"github.com/phraselab/phrase-search-platform/pkg/middleware"
	"github.com/phraselab/phrase-search-platform/pkg/postgres"
	"github.com/phraselab/phrase-search-platform/pkg/resilience"
)

// Handler answers phrase queries against the loaded index variants.
//
// The optional audit log requires a `phrase_queries` table:
//
//	CREATE TABLE phrase_queries (
//	    id         BIGSERIAL PRIMARY KEY,
//	    variant    TEXT NOT NULL,
//	    query      TEXT NOT NULL,
//	    terms      TEXT NOT NULL,
//	    matches    INT NOT NULL,
//	    latency_ms BIGINT NOT NULL,
//	    cache_hit  BOOLEAN NOT NULL,
//	    request_id TEXT,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Handler struct {
	resolvers      map[indexer.Variant]searcher.Resolver
	normalizer     *collection.Normalizer
	cache          *cache.QueryCache
	collector      analytics.Tracker
	audit          *postgres.Client
	auditBreaker   *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	defaultVariant indexer.Variant
	maxQueryTerms  int
	logger         *slog.Logger
}

// New creates a Handler. queryCache, collector, audit, and m may be nil;
// the matching feature is then disabled.
func New(
	resolvers map[indexer.Variant]searcher.Resolver,
	normalizer *collection.Normalizer,
	queryCache *cache.QueryCache,
	collector analytics.Tracker,
	audit *postgres.Client,
	m *metrics.Metrics,
	defaultVariant indexer.Variant,
	maxQueryTerms int,
) *Handler {
	h := &Handler{
		resolvers:      resolvers,
		normalizer:     normalizer,
		cache:          queryCache,
		collector:      collector,
		audit:          audit,
		metrics:        m,
		defaultVariant: defaultVariant,
		maxQueryTerms:  maxQueryTerms,
		logger:         slog.Default().With("component", "phrase-handler"),
	}
	if audit != nil {
		h.auditBreaker = resilience.NewCircuitBreaker("query-audit", resilience.CircuitBreakerConfig{})
	}
	return h
}

// Phrase handles GET /api/v1/phrase?q=...&variant=standard|nextword.
func (h *Handler) Phrase(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	variant := h.defaultVariant
	if v := r.URL.Query().Get("variant"); v != "" {
		parsed, err := indexer.ParseVariant(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown variant %q", v))
			return
		}
		variant = parsed
	}
	resolver, ok := h.resolvers[variant]
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("no %s index loaded", variant))
		return
	}

	terms := h.normalizer.Terms(query)
	if len(terms) == 0 {
		h.writeJSON(w, http.StatusOK, &searcher.PhraseResult{
			Query:   query,
			Variant: string(variant),
			Terms:   []string{},
			Matches: []int{},
		})
		return
	}
	if h.maxQueryTerms > 0 && len(terms) > h.maxQueryTerms {
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("query has %d terms, limit is %d", len(terms), h.maxQueryTerms))
		return
	}

	compute := func() (*searcher.PhraseResult, error) {
		docs, err := resolver.Match(terms)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = []int{}
		}
		return &searcher.PhraseResult{
			Query:        query,
			Variant:      string(variant),
			Terms:        terms,
			Matches:      docs,
			TotalMatches: len(docs),
		}, nil
	}

	var result *searcher.PhraseResult
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, string(variant), terms, compute)
	} else {
		result, err = compute()
	}

	elapsed := time.Since(start)
	if err != nil {
		log.Error("phrase resolution failed", "query", query, "variant", variant, "error", err)
		h.observeQuery(variant, "error", cacheHit, elapsed, 0)
		h.writeError(w, apperrors.HTTPStatusCode(err), "phrase resolution failed")
		return
	}

	outcome := "matched"
	if result.TotalMatches == 0 {
		outcome = "zero_match"
	}
	h.observeQuery(variant, outcome, cacheHit, elapsed, result.TotalMatches)

	log.Info("phrase query served",
		"query", query,
		"variant", variant,
		"matches", result.TotalMatches,
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		h.collector.Track(analytics.QueryEvent{
			Type:      eventType,
			Variant:   string(variant),
			Query:     query,
			Terms:     terms,
			Matches:   result.TotalMatches,
			LatencyMs: elapsed.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	h.recordAudit(ctx, string(variant), query, terms, result.TotalMatches, elapsed, cacheHit)

	h.writeJSON(w, http.StatusOK, result)
}

// auditTimeout bounds each audit insert so a slow database cannot hold a
// query response. Timeouts count as breaker failures.
const auditTimeout = 2 * time.Second

// recordAudit inserts one row into the query audit log. Failures never fail
// the request; the circuit breaker keeps a flapping database from slowing
// every query down.
func (h *Handler) recordAudit(ctx context.Context, variant, query string, terms []string, matches int, elapsed time.Duration, cacheHit bool) {
	if h.audit == nil {
		return
	}
	requestID := middleware.GetRequestID(ctx)
	err := h.auditBreaker.Execute(func() error {
		return resilience.WithTimeout(ctx, auditTimeout, "query-audit", func(ctx context.Context) error {
			_, err := h.audit.DB.ExecContext(ctx,
				`INSERT INTO phrase_queries (variant, query, terms, matches, latency_ms, cache_hit, request_id, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				variant, query, strings.Join(terms, " "), matches,
				elapsed.Milliseconds(), cacheHit, requestID, time.Now().UTC(),
			)
			return err
		})
	})
	if err != nil {
		h.logger.Warn("query audit skipped", "error", err)
	}
}

func (h *Handler) observeQuery(variant indexer.Variant, outcome string, cacheHit bool, elapsed time.Duration, matches int) {
	if h.metrics == nil {
		return
	}
	h.metrics.PhraseQueriesTotal.WithLabelValues(string(variant), outcome).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.PhraseQueryLatency.WithLabelValues(string(variant), cacheStatus).Observe(elapsed.Seconds())
	if outcome != "error" {
		h.metrics.PhraseMatchCount.WithLabelValues(string(variant)).Observe(float64(matches))
	}
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
