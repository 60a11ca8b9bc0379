// Package interpret memoises query interpretation per category snapshot.
package interpret

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/categories"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Result is one interpretation of a search box string.
type Result struct {
	Query    query.ParsedQuery    `json:"query"`
	Terms    query.HighlightTerms `json:"terms"`
	CacheHit bool                 `json:"-"`
}

// memoKey is comparable: interpretation is a pure function of these three.
type memoKey struct {
	input   string
	prior   query.ParsedQuery
	version uint64
}

type entry struct {
	q     query.ParsedQuery
	terms query.HighlightTerms
}

// Memo caches interpretations. A new category snapshot version changes
// every key, so stale entries simply age out of the LRU.
type Memo struct {
	cache *lru.Cache[memoKey, entry]
	onHit func(hit bool)
}

// NewMemo creates a Memo holding at most size interpretations. onLookup,
// if non-nil, is told whether each lookup was served from the memo.
func NewMemo(size int, onLookup func(hit bool)) (*Memo, error) {
	cache, err := lru.New[memoKey, entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating interpretation memo: %w", err)
	}
	return &Memo{cache: cache, onHit: onLookup}, nil
}

// Interpret returns the filters and highlight terms for input merged onto
// prior, resolving categories against snap.
func (m *Memo) Interpret(input string, prior query.ParsedQuery, snap *categories.Snapshot) Result {
	key := memoKey{input: input, prior: prior, version: snap.Version}
	if e, ok := m.cache.Get(key); ok {
		m.record(true)
		return Result{Query: e.q, Terms: copyTerms(e.terms), CacheHit: true}
	}
	m.record(false)

	q, terms := query.Interpret(input, prior, snap.Lookup)
	m.cache.Add(key, entry{q: q, terms: copyTerms(terms)})
	return Result{Query: q, Terms: terms}
}

// Len reports the number of memoised interpretations.
func (m *Memo) Len() int {
	return m.cache.Len()
}

func (m *Memo) record(hit bool) {
	if m.onHit != nil {
		m.onHit(hit)
	}
}

// copyTerms keeps callers from mutating slices shared with the memo.
func copyTerms(t query.HighlightTerms) query.HighlightTerms {
	return query.HighlightTerms{
		Phrases: append(make([]string, 0, len(t.Phrases)), t.Phrases...),
		Words:   append(make([]string, 0, len(t.Words)), t.Words...),
	}
}
