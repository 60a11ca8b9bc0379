package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/lib/pq"
)

const dateLayout = "2006-01-02"

const postColumns = `p.id::text, p.title, p.excerpt, p.body, p.author, COALESCE(p.author_id::text, ''),
	COALESCE(p.category_id::text, ''), p.origin, p.published_at`

const documentExpr = `(COALESCE(p.title, '') || ' ' || COALESCE(p.excerpt, '') || ' ' || COALESCE(p.body, ''))`

// Filter is everything a search needs from the store.
type Filter struct {
	Query  query.ParsedQuery
	Terms  query.HighlightTerms
	UserID string
	Limit  int
	Offset int
}

// BuildSearchSQL returns the page query for f and its arguments.
func BuildSearchSQL(f Filter) (string, []any) {
	where, args := buildWhere(f)
	args = append(args, f.Limit, f.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM posts p WHERE %s ORDER BY p.published_at DESC, p.id LIMIT $%d OFFSET $%d`,
		postColumns, where, len(args)-1, len(args))
	return sql, args
}

// BuildCountSQL returns the total-hits query for f and its arguments.
func BuildCountSQL(f Filter) (string, []any) {
	where, args := buildWhere(f)
	return `SELECT COUNT(*) FROM posts p WHERE ` + where, args
}

func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if terms := f.Terms.All(); len(terms) > 0 {
		patterns := make([]string, 0, len(terms))
		for _, t := range terms {
			patterns = append(patterns, "%"+escapeLike(t)+"%")
		}
		conds = append(conds, fmt.Sprintf("%s ILIKE ALL(%s)", documentExpr, arg(pq.Array(patterns))))
	}

	q := f.Query
	if q.Author != "" {
		conds = append(conds, "p.author ILIKE "+arg("%"+escapeLike(q.Author)+"%"))
	}
	if q.CategoryID != "" {
		conds = append(conds, "p.category_id::text = "+arg(q.CategoryID))
	}
	if q.DateFrom != "" {
		if from, ok := parseDate("after", q.DateFrom); ok {
			conds = append(conds, "p.published_at >= "+arg(from))
		}
	}
	if q.DateTo != "" {
		if to, ok := parseDate("before", q.DateTo); ok {
			conds = append(conds, "p.published_at < "+arg(to.AddDate(0, 0, 1)))
		}
	}
	if origin := q.EffectiveOrigin(); origin != query.OriginAll {
		conds = append(conds, "p.origin = "+arg(string(origin)))
	}
	if q.MineOnly {
		if f.UserID == "" {
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, "p.author_id::text = "+arg(f.UserID))
		}
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}

// parseDate reads a before:/after: value. Anything but a calendar date is
// ignored rather than rejected.
func parseDate(directive, value string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		slog.Default().With("component", "post-store").Warn("ignoring unparseable date filter",
			"directive", directive, "value", value)
		return time.Time{}, false
	}
	return t, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
