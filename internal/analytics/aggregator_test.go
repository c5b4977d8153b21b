package analytics

import (
	"testing"
	"time"
)

func event(variant, query string, matches int, latencyMs int64, cacheHit bool) QueryEvent {
	eventType := EventCacheMiss
	if cacheHit {
		eventType = EventCacheHit
	}
	return QueryEvent{
		Type:      eventType,
		Variant:   variant,
		Query:     query,
		Matches:   matches,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
}

// TestAggregatorStats folds a handful of events and checks every aggregate.
func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(event("standard", "the cat", 3, 10, false))
	agg.Record(event("standard", "the cat", 3, 2, true))
	agg.Record(event("nextword", "lost phrase", 0, 30, false))
	agg.Record(event("nextword", "the cat", 3, 1, true))

	stats := agg.Stats()
	if stats.TotalQueries != 4 {
		t.Errorf("expected 4 total queries, got %d", stats.TotalQueries)
	}
	if stats.QueriesByVariant["standard"] != 2 || stats.QueriesByVariant["nextword"] != 2 {
		t.Errorf("unexpected variant counts: %v", stats.QueriesByVariant)
	}
	if stats.CacheHits != 2 || stats.CacheMisses != 2 {
		t.Errorf("expected 2 hits and 2 misses, got %d and %d", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroMatchCount != 1 {
		t.Errorf("expected 1 zero-match query, got %d", stats.ZeroMatchCount)
	}
	if stats.AvgLatencyMs != 10.75 {
		t.Errorf("expected avg latency 10.75, got %v", stats.AvgLatencyMs)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "the cat" || stats.TopQueries[0].Count != 3 {
		t.Errorf("unexpected top queries: %v", stats.TopQueries)
	}
	if len(stats.ZeroMatchQueries) != 1 || stats.ZeroMatchQueries[0].Query != "lost phrase" {
		t.Errorf("unexpected zero-match queries: %v", stats.ZeroMatchQueries)
	}
	if stats.QueriesPerMinute <= 0 {
		t.Errorf("expected positive queries per minute, got %v", stats.QueriesPerMinute)
	}
}

// TestPercentile checks index selection on small samples.
func TestPercentile(t *testing.T) {
	cases := []struct {
		name   string
		sorted []int64
		pct    int
		want   int64
	}{
		{"empty", nil, 50, 0},
		{"single", []int64{7}, 99, 7},
		{"p50 of four", []int64{1, 2, 3, 4}, 50, 3},
		{"p99 clamps", []int64{1, 2, 3, 4}, 99, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentile(tc.sorted, tc.pct); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

// TestTopN checks ordering, the tie-break on query text, and truncation.
func TestTopN(t *testing.T) {
	counts := map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}
	top := topN(counts, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	if top[0].Query != "c" || top[1].Query != "a" || top[2].Query != "b" {
		t.Errorf("unexpected order: %v", top)
	}
}
