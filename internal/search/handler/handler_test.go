package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/categories"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/interpret"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/results"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/store"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	page    *store.Page
	err     error
	filters []store.Filter
}

func (f *fakeStore) Search(_ context.Context, filter store.Filter) (*store.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

type fakeCache struct {
	hit         bool
	invalidated bool
	err         error
}

func (c *fakeCache) GetOrCompute(ctx context.Context, f store.Filter, fn func(ctx context.Context) (*store.Page, error)) (*store.Page, bool, error) {
	page, err := fn(ctx)
	return page, c.hit, err
}

func (c *fakeCache) Invalidate(context.Context) (int64, error) {
	c.invalidated = true
	return 3, c.err
}

func (c *fakeCache) Stats() (int64, int64) { return 3, 1 }

type fixedDirectory struct{ snap *categories.Snapshot }

func (d fixedDirectory) Snapshot() *categories.Snapshot { return d.snap }

type recordingTracker struct{ events []analytics.SearchEvent }

func (r *recordingTracker) Track(e analytics.SearchEvent) { r.events = append(r.events, e) }

type fixture struct {
	h      *Handler
	mux    *http.ServeMux
	store  *fakeStore
	cache  *fakeCache
	events *recordingTracker
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	memo, err := interpret.NewMemo(64, nil)
	require.NoError(t, err)
	st := &fakeStore{page: &store.Page{
		Total: 2,
		Posts: []store.Post{
			{ID: "1", Title: "Routine <b>traffic stop</b>", Body: "<p>stop near the border</p>"},
			{ID: "2", Title: "Border convoy", Body: "no match here"},
		},
	}}
	f := &fixture{store: st, events: &recordingTracker{}}
	deps := Deps{
		Store: st,
		Categories: fixedDirectory{snap: &categories.Snapshot{
			Version: 1,
			Lookup:  query.CategoryLookup{"intel quick updates": {ID: "5", Name: "Intel Quick Updates"}},
			Refs:    []query.CategoryRef{{ID: "5", Name: "Intel Quick Updates"}},
		}},
		Memo:      memo,
		Annotator: results.NewAnnotator(2, nil),
		Events:    f.events,
		Metrics:   metrics.New(prometheus.NewRegistry()),
	}
	if withCache {
		f.cache = &fakeCache{}
		deps.Cache = f.cache
	}
	f.h = New(deps, config.SearchConfig{DefaultLimit: 20, MaxResults: 50, MaxQueryLength: 64, HighlightWorkers: 2})
	f.mux = http.NewServeMux()
	f.h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)
	f.cache.hit = true
	target := "/api/v1/posts/search?" + "q=" + strings.ReplaceAll(`category:Intel+Quick+Updates+"traffic+stop"+border+mine:true`, `"`, "%22") + "&limit=10&page=2&origin=manual"
	rec := f.do(t, http.MethodGet, target, "", map[string]string{UserIDHeader: "42"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[SearchResponse](t, rec)
	assert.Equal(t, "5", resp.Query.CategoryID)
	assert.Equal(t, query.OriginManual, resp.Query.Origin)
	assert.True(t, resp.Query.MineOnly)
	assert.Equal(t, []string{"traffic stop"}, resp.Terms.Phrases)
	assert.Equal(t, []string{"border"}, resp.Terms.Words)
	assert.Equal(t, []string{"category", "origin", "mine"}, resp.Filters)
	assert.Equal(t, 2, resp.TotalHits)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.Limit)
	assert.True(t, resp.CacheHit)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, []query.Segment{{Text: "Routine "}, {Text: "traffic stop", Matched: true}}, resp.Results[0].TitleHL.Segments)
	assert.Equal(t, 1, resp.Results[1].Matches)

	require.Len(t, f.store.filters, 1)
	sent := f.store.filters[0]
	assert.Equal(t, "42", sent.UserID)
	assert.Equal(t, 10, sent.Offset)
	assert.Equal(t, 10, sent.Limit)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0]
	assert.Equal(t, analytics.EventCacheHit, ev.Type)
	assert.Equal(t, `"traffic stop" border`, ev.FreeText)
	assert.Equal(t, []string{"category", "origin", "mine"}, ev.Filters)
	assert.Equal(t, resp.Results[0].Matches+resp.Results[1].Matches, ev.Matches)
}

func TestSearchEmptyQuerySkipsStore(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/posts/search?q=+++", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SearchResponse](t, rec)
	assert.Zero(t, resp.TotalHits)
	assert.Empty(t, resp.Results)
	assert.Empty(t, f.store.filters)
	assert.Empty(t, f.events.events)
}

func TestSearchFilterOnly(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/posts/search?q=author:smith", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SearchResponse](t, rec)
	assert.Equal(t, "smith", resp.Query.Author)
	assert.Empty(t, resp.Terms.All())
	require.Len(t, f.events.events, 1)
	assert.Equal(t, analytics.EventFilterOnly, f.events.events[0].Type)
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/posts/search?q=riot&limit=0", http.StatusBadRequest},
		{"/api/v1/posts/search?q=riot&limit=abc", http.StatusBadRequest},
		{"/api/v1/posts/search?q=riot&page=-1", http.StatusBadRequest},
		{"/api/v1/posts/search?q=" + strings.Repeat("x", 65), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target, "", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Empty(t, f.store.filters)
}

func TestSearchLimitClamped(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/posts/search?q=riot&limit=500", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, f.store.filters[0].Limit)
}

func TestSearchStoreErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: breaker open", apperrors.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: slow", apperrors.ErrTimeout), http.StatusGatewayTimeout},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		f := newFixture(t, false)
		f.store.err = tt.err
		rec := f.do(t, http.MethodGet, "/api/v1/posts/search?q=riot", "", nil)
		assert.Equal(t, tt.status, rec.Code)
		body := decode[map[string]string](t, rec)
		assert.NotContains(t, body["error"], "pq:")
	}
}

func TestInterpretEndpoint(t *testing.T) {
	f := newFixture(t, false)
	body := `{"input":"after:2024-01-01 \"border crossing\" convoy","prior":{"free_text":"old","author":"Smith","origin":"all","mine_only":false}}`
	rec := f.do(t, http.MethodPost, "/api/v1/query/interpret", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[InterpretResponse](t, rec)
	assert.Equal(t, "Smith", resp.Query.Author)
	assert.Equal(t, "2024-01-01", resp.Query.DateFrom)
	assert.Equal(t, `"border crossing" convoy`, resp.Query.FreeText)
	assert.Equal(t, []string{"border crossing"}, resp.Terms.Phrases)
	assert.Equal(t, []string{"author", "after"}, resp.Filters)
	assert.Contains(t, resp.Params, "author=Smith")
	assert.Contains(t, resp.Params, "date_from=2024-01-01")
}

func TestInterpretRejectsBadBody(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/query/interpret", `{"input":`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/query/interpret", `{"inpt":"x"}`, nil).Code)
}

func TestHighlightEndpoint(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/v1/highlight", `{"text":"category and cat show","terms":{"phrases":[],"words":["cat"]}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HighlightResponse](t, rec)
	assert.Equal(t, []query.Segment{{Text: "category and "}, {Text: "cat", Matched: true}, {Text: " show"}}, resp.Segments)
	assert.Equal(t, 2, resp.Matches)

	rec = f.do(t, http.MethodPost, "/api/v1/highlight", `{"text":"<p>Routine traffic stop</p>","html":true,"query":"\"traffic stop\" author:x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[HighlightResponse](t, rec)
	assert.Equal(t, []string{"traffic stop"}, resp.Terms.Phrases)
	assert.Equal(t, []query.Segment{{Text: "Routine "}, {Text: "traffic stop", Matched: true}}, resp.Segments)
	assert.Equal(t, 1, resp.Matches)
}

func TestCategoriesEndpoint(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Intel Quick Updates"`)
	assert.Contains(t, rec.Body.String(), `"version":1`)
}

func TestCacheEndpoints(t *testing.T) {
	uncached := newFixture(t, false)
	assert.Contains(t, uncached.do(t, http.MethodGet, "/api/v1/cache/stats", "", nil).Body.String(), "disabled")
	assert.Equal(t, http.StatusServiceUnavailable, uncached.do(t, http.MethodPost, "/api/v1/cache/invalidate", "", nil).Code)

	cached := newFixture(t, true)
	rec := cached.do(t, http.MethodGet, "/api/v1/cache/stats", "", nil)
	assert.Contains(t, rec.Body.String(), `"hit_rate":"75.0%"`)

	rec = cached.do(t, http.MethodPost, "/api/v1/cache/invalidate", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, cached.cache.invalidated)

	cached.cache.err = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, cached.do(t, http.MethodPost, "/api/v1/cache/invalidate", "", nil).Code)
}
