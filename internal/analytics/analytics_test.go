package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, events)
	return nil
}

func (p *recordingPublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, b := range p.batches {
		all = append(all, b...)
	}
	return all
}

func TestCollectorBatchesBySize(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())

	for _, id := range []string{"a", "b", "c"} {
		c.Track(SearchEvent{RequestID: id, Query: id})
	}
	c.Close()

	events := pub.events()
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Key)
	assert.Equal(t, "c", events[2].Value.(SearchEvent).Query)
	assert.Len(t, pub.batches[0], 2)
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 50, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(SearchEvent{RequestID: "x"})
	c.Track(SearchEvent{RequestID: "y"})
	require.Eventually(t, func() bool { return len(c.eventCh) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-c.done

	assert.Len(t, pub.events(), 2)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&recordingPublisher{}, 1, 10, time.Hour)
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	assert.Equal(t, int64(1), c.Dropped())
}

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, EventZeroResult, Classify("riot", 0, true))
	assert.Equal(t, EventFilterOnly, Classify("", 4, false))
	assert.Equal(t, EventCacheHit, Classify("riot", 4, true))
	assert.Equal(t, EventCacheMiss, Classify("riot", 4, false))
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{FreeText: "Riot", TotalHits: 3, Matches: 6, LatencyMs: 10, Filters: []string{"author"}})
	agg.Record(SearchEvent{FreeText: "riot ", TotalHits: 3, Matches: 2, LatencyMs: 30, CacheHit: true, Filters: []string{"author", "mine"}})
	agg.Record(SearchEvent{FreeText: "convoy", TotalHits: 0, LatencyMs: 20})
	agg.Record(SearchEvent{FreeText: "", TotalHits: 5, LatencyMs: 40, Filters: []string{"category"}})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.FilterOnlyCount)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 0.001)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.InDelta(t, 2.0, stats.AvgMatches, 0.001)
	assert.Equal(t, []QueryCount{{Query: "riot", Count: 2}, {Query: "convoy", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "convoy", Count: 1}}, stats.ZeroResultQueries)
	assert.Equal(t, map[string]int64{"author": 2, "mine": 1, "category": 1}, stats.DirectiveUsage)
}

func TestHandleEventSkipsGarbage(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	value, err := json.Marshal(SearchEvent{FreeText: "riot", TotalHits: 1})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), nil, value))
	require.NoError(t, handle(context.Background(), nil, []byte("{broken")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

type fakeLister struct {
	limit int
	err   error
}

func (f *fakeLister) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []AggregatedStats{{TotalSearches: 7}}, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{FreeText: "riot", TotalHits: 1})
	lister := &fakeLister{}
	h := NewHandler(agg, lister)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=9999", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxHistory, lister.limit)

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lister.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(agg, nil).History(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
