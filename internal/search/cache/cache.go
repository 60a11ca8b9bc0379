// Package cache keeps pages of search results in Redis, keyed on the
// canonical form of the interpreted query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/store"
	pkgredis "github.com/Adithya-Monish-Kumar-K/post-search/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPrefix(ctx context.Context, prefix string) (int64, error)
}

type PageCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	onHit   func(hit bool)
}

// New creates a PageCache. onLookup, if non-nil, observes every lookup.
func New(backend Backend, ttl time.Duration, onLookup func(hit bool)) *PageCache {
	return &PageCache{
		backend: backend,
		ttl:     ttl,
		onHit:   onLookup,
		logger:  slog.Default().With("component", "page-cache"),
	}
}

func (c *PageCache) Get(ctx context.Context, f store.Filter) (*store.Page, bool) {
	key := Key(f)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var page store.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.onHit != nil {
		c.onHit(true)
	}
	c.logger.Debug("cache hit", "key", key)
	return &page, true
}

func (c *PageCache) Set(ctx context.Context, f store.Filter, page *store.Page) {
	key := Key(f)
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached page for f or computes, stores and
// returns it. Concurrent misses for the same key share one computation.
func (c *PageCache) GetOrCompute(
	ctx context.Context,
	f store.Filter,
	computeFn func(ctx context.Context) (*store.Page, error),
) (*store.Page, bool, error) {
	if page, ok := c.Get(ctx, f); ok {
		return page, true, nil
	}
	val, err, _ := c.group.Do(Key(f), func() (any, error) {
		page, err := computeFn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, f, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*store.Page), false, nil
}

// Invalidate drops every cached page.
func (c *PageCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PageCache) miss() {
	c.misses.Add(1)
	if c.onHit != nil {
		c.onHit(false)
	}
}

// Key returns the Redis key for f. Filters that select the same posts in
// the same order share a key: term case and order do not matter, and the
// user only matters when the results are restricted to their own posts.
func Key(f store.Filter) string {
	hash := sha256.Sum256([]byte(canonical(f)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func canonical(f store.Filter) string {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, strings.ToLower(s))
		}
		slices.Sort(out)
		return slices.Compact(out)
	}
	q := f.Query
	user := ""
	if q.MineOnly {
		user = f.UserID
	}
	parts := []string{
		"p=" + strings.Join(lower(f.Terms.Phrases), "\x1f"),
		"w=" + strings.Join(lower(f.Terms.Words), "\x1f"),
		"a=" + strings.ToLower(q.Author),
		"c=" + q.CategoryID,
		"from=" + q.DateFrom,
		"to=" + q.DateTo,
		"o=" + string(q.EffectiveOrigin()),
		fmt.Sprintf("mine=%t", q.MineOnly),
		"u=" + user,
		fmt.Sprintf("limit=%d", f.Limit),
		fmt.Sprintf("offset=%d", f.Offset),
	}
	return strings.Join(parts, "|")
}
