// Package store reads posts from Postgres for the search page.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/post-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
)

// Post is one stored post. Title, Excerpt and Body may contain HTML.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	AuthorID    string    `json:"author_id,omitempty"`
	CategoryID  string    `json:"category_id,omitempty"`
	Origin      string    `json:"origin"`
	PublishedAt time.Time `json:"published_at"`
}

// Page is one page of matching posts plus the total match count.
type Page struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

// TxRunner runs fn inside a read-only transaction.
type TxRunner interface {
	InReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type PostgresStore struct {
	db      TxRunner
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

func NewPostgresStore(db TxRunner, breaker *resilience.CircuitBreaker, timeout time.Duration) *PostgresStore {
	return &PostgresStore{
		db:      db,
		breaker: breaker,
		timeout: timeout,
		logger:  slog.Default().With("component", "post-store"),
	}
}

// Search returns the page of posts matching f, newest first.
func (s *PostgresStore) Search(ctx context.Context, f Filter) (*Page, error) {
	var page *Page
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, s.timeout, "post-search", func(ctx context.Context) error {
			var err error
			page, err = s.search(ctx, f)
			return err
		})
	})
	switch {
	case err == nil:
		return page, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, err)
	case errors.Is(err, resilience.ErrDeadline):
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	default:
		return nil, err
	}
}

func (s *PostgresStore) search(ctx context.Context, f Filter) (*Page, error) {
	page := &Page{Posts: make([]Post, 0, f.Limit)}
	err := s.db.InReadTx(ctx, func(tx *sql.Tx) error {
		countSQL, countArgs := BuildCountSQL(f)
		if err := tx.QueryRowContext(ctx, countSQL, countArgs...).Scan(&page.Total); err != nil {
			return fmt.Errorf("counting posts: %w", err)
		}
		if page.Total == 0 || f.Offset >= page.Total {
			return nil
		}

		pageSQL, pageArgs := BuildSearchSQL(f)
		rows, err := tx.QueryContext(ctx, pageSQL, pageArgs...)
		if err != nil {
			return fmt.Errorf("querying posts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p Post
			if err := rows.Scan(&p.ID, &p.Title, &p.Excerpt, &p.Body, &p.Author, &p.AuthorID,
				&p.CategoryID, &p.Origin, &p.PublishedAt); err != nil {
				return fmt.Errorf("scanning post row: %w", err)
			}
			page.Posts = append(page.Posts, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("posts fetched", "total", page.Total, "returned", len(page.Posts), "offset", f.Offset)
	return page, nil
}
