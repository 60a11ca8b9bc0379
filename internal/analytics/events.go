package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventFilterOnly EventType = "filter_only"
)

// SearchEvent describes one served search. Query is the raw search box
// string; FreeText is what was left after directives were extracted and
// Filters lists the filter kinds in force.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	FreeText  string    `json:"free_text"`
	Filters   []string  `json:"filters"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	Matches   int       `json:"matches"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Classify picks the event type from the outcome of a search.
func Classify(freeText string, totalHits int, cacheHit bool) EventType {
	switch {
	case totalHits == 0:
		return EventZeroResult
	case freeText == "":
		return EventFilterOnly
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}
