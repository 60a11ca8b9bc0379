// Package results turns stored posts into highlighted search results.
package results

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/plaintext"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/store"
	"golang.org/x/sync/errgroup"
)

// Field is one highlighted text field of a result.
type Field struct {
	Segments []query.Segment `json:"segments"`
	Matches  int             `json:"matches"`
}

// Item is a post with its highlighted fields. Matches is the total over
// all fields and is the figure shown as "N matches" next to the result.
type Item struct {
	store.Post
	TitleHL   Field `json:"title_highlight"`
	ExcerptHL Field `json:"excerpt_highlight"`
	BodyHL    Field `json:"body_highlight"`
	Matches   int   `json:"matches"`
}

// Observer receives the number of matched segments per annotated field.
type Observer func(field string, matched int)

type Annotator struct {
	workers  int
	observer Observer
}

func NewAnnotator(workers int, observer Observer) *Annotator {
	if workers < 1 {
		workers = 1
	}
	return &Annotator{workers: workers, observer: observer}
}

// Annotate highlights every post. The output has the same order as posts.
func (a *Annotator) Annotate(ctx context.Context, posts []store.Post, terms query.HighlightTerms) ([]Item, error) {
	items := make([]Item, len(posts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range posts {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("annotating post %s: %w", posts[i].ID, err)
			}
			items[i] = a.annotate(posts[i], terms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (a *Annotator) annotate(p store.Post, terms query.HighlightTerms) Item {
	item := Item{Post: p}
	item.TitleHL = a.field("title", p.Title, terms)
	item.ExcerptHL = a.field("excerpt", p.Excerpt, terms)
	item.BodyHL = a.field("body", p.Body, terms)
	item.Matches = item.TitleHL.Matches + item.ExcerptHL.Matches + item.BodyHL.Matches
	return item
}

func (a *Annotator) field(name, html string, terms query.HighlightTerms) Field {
	f := HighlightHTML(html, terms)
	if a.observer != nil && !terms.Empty() {
		matched := 0
		for _, s := range f.Segments {
			if s.Matched {
				matched++
			}
		}
		a.observer(name, matched)
	}
	return f
}

// HighlightHTML strips markup from html and highlights and counts terms in
// the remaining text.
func HighlightHTML(html string, terms query.HighlightTerms) Field {
	text := plaintext.Strip(html)
	return Field{
		Segments: query.Highlight(text, terms),
		Matches:  query.CountMatches(text, terms.All()),
	}
}
