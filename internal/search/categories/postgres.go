package categories

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/postgres"
)

// PostgresSource reads the categories table.
type PostgresSource struct {
	db postgres.Querier
}

func NewPostgresSource(db postgres.Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadCategories(ctx context.Context) ([]query.CategoryRef, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id::text, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	refs := make([]query.CategoryRef, 0)
	for rows.Next() {
		var ref query.CategoryRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
