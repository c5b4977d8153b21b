package analytics

import "time"

type EventType string

const (
	EventCacheHit  EventType = "cache_hit"
	EventCacheMiss EventType = "cache_miss"
)

// QueryEvent describes one served phrase query.
type QueryEvent struct {
	Type      EventType `json:"type"`
	Variant   string    `json:"variant"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Matches   int       `json:"matches"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Tracker accepts query events for publication. Both collectors satisfy it.
type Tracker interface {
	Track(event QueryEvent)
}
