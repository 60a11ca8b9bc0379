// Package handler serves the post search HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/categories"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/interpret"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/results"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/store"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/tracing"
)

// UserIDHeader identifies the signed-in user. It is set by the
// authenticating proxy in front of this service.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

type PostSearcher interface {
	Search(ctx context.Context, f store.Filter) (*store.Page, error)
}

type PageCache interface {
	GetOrCompute(ctx context.Context, f store.Filter, computeFn func(ctx context.Context) (*store.Page, error)) (*store.Page, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

type CategoryDirectory interface {
	Snapshot() *categories.Snapshot
}

type EventTracker interface {
	Track(event analytics.SearchEvent)
}

// Deps are the collaborators of a Handler. Cache, Events and Metrics are
// optional.
type Deps struct {
	Store      PostSearcher
	Cache      PageCache
	Categories CategoryDirectory
	Memo       *interpret.Memo
	Annotator  *results.Annotator
	Events     EventTracker
	Metrics    *metrics.Metrics
}

type Handler struct {
	deps   Deps
	cfg    config.SearchConfig
	logger *slog.Logger
}

func New(deps Deps, cfg config.SearchConfig) *Handler {
	return &Handler{
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/posts/search", h.Search)
	mux.HandleFunc("POST /api/v1/query/interpret", h.Interpret)
	mux.HandleFunc("POST /api/v1/highlight", h.Highlight)
	mux.HandleFunc("GET /api/v1/categories", h.Categories)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type SearchResponse struct {
	Query     query.ParsedQuery    `json:"query"`
	Terms     query.HighlightTerms `json:"terms"`
	Filters   []string             `json:"filters"`
	TotalHits int                  `json:"total_hits"`
	Page      int                  `json:"page"`
	Limit     int                  `json:"limit"`
	CacheHit  bool                 `json:"cache_hit"`
	Results   []results.Item       `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	input := params.Get("q")
	if err := h.checkLength(input); err != nil {
		h.writeError(w, err)
		return
	}
	page, limit, err := h.pagination(params.Get("page"), params.Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	_, span := tracing.StartChildSpan(ctx, "interpret")
	interp := h.deps.Memo.Interpret(input, query.ParseValues(params), h.deps.Categories.Snapshot())
	span.SetAttr("memo_hit", interp.CacheHit)
	span.End()

	resp := SearchResponse{
		Query:   interp.Query,
		Terms:   interp.Terms,
		Filters: interp.Query.Applied(),
		Page:    page,
		Limit:   limit,
		Results: []results.Item{},
	}
	if interp.Query.IsEmpty() {
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	filter := store.Filter{
		Query:  interp.Query,
		Terms:  interp.Terms,
		UserID: r.Header.Get(UserIDHeader),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	fetchCtx, span := tracing.StartChildSpan(ctx, "fetch")
	posts, cacheHit, err := h.fetch(fetchCtx, filter)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	if err != nil {
		log.Error("post search failed", "query", input, "error", err)
		h.observe("error", cacheHit, 0, start)
		h.writeError(w, err)
		return
	}

	annotateCtx, span := tracing.StartChildSpan(ctx, "annotate")
	items, err := h.deps.Annotator.Annotate(annotateCtx, posts.Posts, interp.Terms)
	span.SetAttr("posts", len(posts.Posts))
	span.End()
	if err != nil {
		log.Error("annotating results failed", "query", input, "error", err)
		h.writeError(w, err)
		return
	}

	resp.TotalHits = posts.Total
	resp.CacheHit = cacheHit
	resp.Results = items

	matches := 0
	for _, item := range items {
		matches += item.Matches
	}
	latency := time.Since(start)
	eventType := analytics.Classify(interp.Query.FreeText, posts.Total, cacheHit)
	h.observe(string(eventType), cacheHit, len(items), start)
	for _, kind := range resp.Filters {
		h.count(func(m *metrics.Metrics) { m.DirectivesApplied.WithLabelValues(kind).Inc() })
	}

	log.Info("search completed",
		"query", input,
		"filters", resp.Filters,
		"total_hits", posts.Total,
		"returned", len(items),
		"matches", matches,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.deps.Events != nil {
		h.deps.Events.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     input,
			FreeText:  interp.Query.FreeText,
			Filters:   resp.Filters,
			Terms:     interp.Terms.All(),
			TotalHits: posts.Total,
			Returned:  len(items),
			Matches:   matches,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fetch(ctx context.Context, f store.Filter) (*store.Page, bool, error) {
	if h.deps.Cache == nil {
		page, err := h.deps.Store.Search(ctx, f)
		return page, false, err
	}
	return h.deps.Cache.GetOrCompute(ctx, f, func(ctx context.Context) (*store.Page, error) {
		return h.deps.Store.Search(ctx, f)
	})
}

type InterpretRequest struct {
	Input string             `json:"input"`
	Prior *query.ParsedQuery `json:"prior,omitempty"`
}

type InterpretResponse struct {
	Query   query.ParsedQuery    `json:"query"`
	Terms   query.HighlightTerms `json:"terms"`
	Filters []string             `json:"filters"`
	Params  string               `json:"params"`
}

// Interpret shows how a search box string would be understood without
// running the search. Params is the query string of the equivalent
// search request.
func (h *Handler) Interpret(w http.ResponseWriter, r *http.Request) {
	var req InterpretRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.checkLength(req.Input); err != nil {
		h.writeError(w, err)
		return
	}
	prior := query.NewParsedQuery()
	if req.Prior != nil {
		prior = *req.Prior
	}
	res := h.deps.Memo.Interpret(req.Input, prior, h.deps.Categories.Snapshot())
	h.writeJSON(w, http.StatusOK, InterpretResponse{
		Query:   res.Query,
		Terms:   res.Terms,
		Filters: res.Query.Applied(),
		Params:  res.Query.Values().Encode(),
	})
}

// HighlightRequest carries either explicit terms or a search box string to
// derive them from. HTML marks Text as markup to strip first.
type HighlightRequest struct {
	Text  string                `json:"text"`
	HTML  bool                  `json:"html"`
	Terms *query.HighlightTerms `json:"terms,omitempty"`
	Query string                `json:"query,omitempty"`
}

type HighlightResponse struct {
	Terms    query.HighlightTerms `json:"terms"`
	Segments []query.Segment      `json:"segments"`
	Matches  int                  `json:"matches"`
}

func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	var terms query.HighlightTerms
	switch {
	case req.Terms != nil:
		terms = *req.Terms
	default:
		if err := h.checkLength(req.Query); err != nil {
			h.writeError(w, err)
			return
		}
		terms = h.deps.Memo.Interpret(req.Query, query.NewParsedQuery(), h.deps.Categories.Snapshot()).Terms
	}

	var field results.Field
	if req.HTML {
		field = results.HighlightHTML(req.Text, terms)
	} else {
		field = results.Field{
			Segments: query.Highlight(req.Text, terms),
			Matches:  query.CountMatches(req.Text, terms.All()),
		}
	}
	h.writeJSON(w, http.StatusOK, HighlightResponse{Terms: terms, Segments: field.Segments, Matches: field.Matches})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Categories.Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"categories": snap.Refs,
		"version":    snap.Version,
		"loaded_at":  snap.LoadedAt,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.deps.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":      hits,
		"misses":    misses,
		"total":     total,
		"hit_rate":  fmt.Sprintf("%.1f%%", hitRate),
		"memo_size": h.deps.Memo.Len(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	deleted, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) checkLength(input string) error {
	if h.cfg.MaxQueryLength > 0 && len(input) > h.cfg.MaxQueryLength {
		return apperrors.Newf(apperrors.ErrQueryTooLong, http.StatusBadRequest,
			"query exceeds %d bytes", h.cfg.MaxQueryLength)
	}
	return nil
}

func (h *Handler) pagination(pageStr, limitStr string) (page, limit int, err error) {
	page, limit = 1, h.cfg.DefaultLimit
	if pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return 0, 0, apperrors.Invalid("page must be a positive integer")
		}
	}
	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return 0, 0, apperrors.Invalid("limit must be a positive integer")
		}
		limit = min(limit, h.cfg.MaxResults)
	}
	return page, limit, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Invalid("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperrors.Invalid("invalid request body: %v", err)
	}
	return nil
}

func (h *Handler) observe(resultType string, cacheHit bool, returned int, start time.Time) {
	h.count(func(m *metrics.Metrics) {
		m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		m.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if resultType != "error" {
			m.SearchResultsCount.Observe(float64(returned))
		}
	})
}

func (h *Handler) count(fn func(m *metrics.Metrics)) {
	if h.deps.Metrics != nil {
		fn(h.deps.Metrics)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.PublicMessage(err)})
}
