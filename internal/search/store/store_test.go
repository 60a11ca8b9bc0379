package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchSQLNoFilters(t *testing.T) {
	sql, args := BuildSearchSQL(Filter{Query: query.NewParsedQuery(), Limit: 20})
	assert.Contains(t, sql, "WHERE TRUE ORDER BY p.published_at DESC, p.id LIMIT $1 OFFSET $2")
	assert.Equal(t, []any{20, 0}, args)
}

func TestBuildSearchSQLTerms(t *testing.T) {
	f := Filter{
		Query: query.NewParsedQuery(),
		Terms: query.HighlightTerms{Phrases: []string{"traffic stop"}, Words: []string{"50%", `a_b\c`}},
		Limit: 10,
	}
	sql, args := BuildSearchSQL(f)
	assert.Contains(t, sql, "ILIKE ALL($1)")
	require.Len(t, args, 3)
	assert.Equal(t, pq.Array([]string{"%traffic stop%", `%50\%%`, `%a\_b\\c%`}), args[0])
	assert.Equal(t, 10, args[1])
}

func TestBuildCountSQLFilters(t *testing.T) {
	f := Filter{
		Query: query.ParsedQuery{
			Author:     "O'Brien",
			CategoryID: "5",
			DateFrom:   "2024-01-01",
			DateTo:     "2024-01-31",
			Origin:     query.OriginWordPress,
			MineOnly:   true,
		},
		UserID: "42",
	}
	sql, args := BuildCountSQL(f)
	assert.Equal(t, "SELECT COUNT(*) FROM posts p WHERE p.author ILIKE $1 AND p.category_id::text = $2 AND "+
		"p.published_at >= $3 AND p.published_at < $4 AND p.origin = $5 AND p.author_id::text = $6", sql)
	assert.Equal(t, []any{
		"%O'Brien%",
		"5",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		"wordpress",
		"42",
	}, args)
}

func TestBuildCountSQLOpaqueDatesIgnored(t *testing.T) {
	sql, args := BuildCountSQL(Filter{Query: query.ParsedQuery{DateFrom: "yesterday", DateTo: "03/01/2024"}})
	assert.Equal(t, "SELECT COUNT(*) FROM posts p WHERE TRUE", sql)
	assert.Empty(t, args)
}

func TestBuildCountSQLMineWithoutUser(t *testing.T) {
	sql, args := BuildCountSQL(Filter{Query: query.ParsedQuery{MineOnly: true}})
	assert.Equal(t, "SELECT COUNT(*) FROM posts p WHERE FALSE", sql)
	assert.Empty(t, args)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `snake\_case`, escapeLike("snake_case"))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

type failingDB struct {
	err   error
	calls int
}

func (f *failingDB) InReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	f.calls++
	return f.err
}

func TestSearchOpensCircuit(t *testing.T) {
	db := &failingDB{err: errors.New("connection refused")}
	breaker := resilience.NewCircuitBreaker("posts", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	s := NewPostgresStore(db, breaker, time.Second)

	for i := 0; i < 2; i++ {
		_, err := s.Search(context.Background(), Filter{Limit: 10})
		require.Error(t, err)
		assert.False(t, errors.Is(err, apperrors.ErrStoreUnavailable))
	}

	_, err := s.Search(context.Background(), Filter{Limit: 10})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, 2, db.calls)
}

type slowDB struct{}

func (slowDB) InReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSearchTimeout(t *testing.T) {
	s := NewPostgresStore(slowDB{}, resilience.NewCircuitBreaker("posts", resilience.CircuitBreakerConfig{}), 10*time.Millisecond)
	_, err := s.Search(context.Background(), Filter{Limit: 10})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 504, apperrors.HTTPStatusCode(err))
}
