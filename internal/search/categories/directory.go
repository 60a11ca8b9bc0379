// Package categories keeps the category name→id lookup that category:
// directives resolve against. The table is owned by the category CRUD
// screens; this service only reads it and republishes it as immutable
// snapshots.
package categories

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
)

// Source loads the full category list.
type Source interface {
	LoadCategories(ctx context.Context) ([]query.CategoryRef, error)
}

// Snapshot is one loaded version of the directory. It is never mutated
// after publication.
type Snapshot struct {
	Lookup   query.CategoryLookup
	Refs     []query.CategoryRef
	Version  uint64
	LoadedAt time.Time
}

// Directory serves the latest Snapshot and reloads it from its Source.
type Directory struct {
	source   Source
	interval time.Duration
	current  atomic.Pointer[Snapshot]
	onLoad   func(size int)
	logger   *slog.Logger
}

// NewDirectory creates a Directory holding an empty version-0 snapshot.
// onLoad, if non-nil, is called with the category count after each change.
func NewDirectory(source Source, interval time.Duration, onLoad func(size int)) *Directory {
	d := &Directory{
		source:   source,
		interval: interval,
		onLoad:   onLoad,
		logger:   slog.Default().With("component", "category-directory"),
	}
	d.current.Store(&Snapshot{Lookup: query.CategoryLookup{}, Refs: []query.CategoryRef{}})
	return d
}

// Snapshot returns the current snapshot. It never returns nil.
func (d *Directory) Snapshot() *Snapshot {
	return d.current.Load()
}

// List returns the current categories sorted by name.
func (d *Directory) List() []query.CategoryRef {
	return d.Snapshot().Refs
}

// Refresh reloads the categories. The version only moves when the content
// changed, so memoised interpretations stay valid across no-op reloads.
func (d *Directory) Refresh(ctx context.Context) error {
	var refs []query.CategoryRef
	err := resilience.Retry(ctx, "load-categories", resilience.RetryConfig{MaxAttempts: 3}, func(ctx context.Context) error {
		var err error
		refs, err = d.source.LoadCategories(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("refreshing categories: %w", err)
	}

	refs = normalize(refs)
	prev := d.Snapshot()
	if prev.Version > 0 && slices.Equal(prev.Refs, refs) {
		d.logger.Debug("categories unchanged", "version", prev.Version, "count", len(refs))
		return nil
	}

	next := &Snapshot{
		Lookup:   make(query.CategoryLookup, len(refs)),
		Refs:     refs,
		Version:  prev.Version + 1,
		LoadedAt: time.Now(),
	}
	for _, ref := range refs {
		key := strings.ToLower(strings.TrimSpace(ref.Name))
		if existing, dup := next.Lookup[key]; dup {
			d.logger.Warn("duplicate category name, keeping first", "name", ref.Name, "kept_id", existing.ID, "dropped_id", ref.ID)
			continue
		}
		next.Lookup[key] = ref
	}
	d.current.Store(next)
	d.logger.Info("categories loaded", "version", next.Version, "count", len(refs))
	if d.onLoad != nil {
		d.onLoad(len(next.Lookup))
	}
	return nil
}

// Start refreshes on every interval tick until ctx is cancelled. Failed
// refreshes keep serving the previous snapshot.
func (d *Directory) Start(ctx context.Context) {
	if d.interval <= 0 {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("category refresh failed", "error", err)
			}
		}
	}
}

func normalize(refs []query.CategoryRef) []query.CategoryRef {
	out := make([]query.CategoryRef, 0, len(refs))
	for _, ref := range refs {
		ref.Name = strings.TrimSpace(ref.Name)
		if ref.Name == "" || ref.ID == "" {
			continue
		}
		out = append(out, ref)
	}
	slices.SortFunc(out, func(a, b query.CategoryRef) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
