package query

import (
	"net/url"
	"strings"
)

// Origin restricts results to the system a post came from.
type Origin string

const (
	OriginAll       Origin = "all"
	OriginWordPress Origin = "wordpress"
	OriginManual    Origin = "manual"
)

// ParsedQuery is the structured filter state behind the search box. Empty
// string fields mean "no filter". The zero Origin is treated as OriginAll.
type ParsedQuery struct {
	FreeText   string `json:"free_text"`
	Author     string `json:"author,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	DateFrom   string `json:"date_from,omitempty"`
	DateTo     string `json:"date_to,omitempty"`
	Origin     Origin `json:"origin"`
	MineOnly   bool   `json:"mine_only"`
}

// NewParsedQuery returns the empty filter state.
func NewParsedQuery() ParsedQuery {
	return ParsedQuery{Origin: OriginAll}
}

// EffectiveOrigin returns Origin with the zero value mapped to OriginAll.
func (q ParsedQuery) EffectiveOrigin() Origin {
	if q.Origin == "" {
		return OriginAll
	}
	return q.Origin
}

// IsEmpty reports whether q neither carries free text nor restricts results.
func (q ParsedQuery) IsEmpty() bool {
	return q.FreeText == "" && len(q.Applied()) == 0
}

// Applied lists the filter kinds currently set on q, in directive order.
func (q ParsedQuery) Applied() []string {
	applied := make([]string, 0, 6)
	if q.Author != "" {
		applied = append(applied, "author")
	}
	if q.CategoryID != "" {
		applied = append(applied, "category")
	}
	if q.DateTo != "" {
		applied = append(applied, "before")
	}
	if q.DateFrom != "" {
		applied = append(applied, "after")
	}
	if q.EffectiveOrigin() != OriginAll {
		applied = append(applied, "origin")
	}
	if q.MineOnly {
		applied = append(applied, "mine")
	}
	return applied
}

// Values renders q as the REST query parameters of the posts endpoint.
func (q ParsedQuery) Values() url.Values {
	v := url.Values{}
	if q.FreeText != "" {
		v.Set("q", q.FreeText)
	}
	if q.Author != "" {
		v.Set("author", q.Author)
	}
	if q.CategoryID != "" {
		v.Set("category_id", q.CategoryID)
	}
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	if o := q.EffectiveOrigin(); o != OriginAll {
		v.Set("origin", string(o))
	}
	if q.MineOnly {
		v.Set("mine", "true")
	}
	return v
}

// ParseValues reads the filter parameters written by Values. The "q"
// parameter is ignored: callers interpret it through ExtractFilters with
// the returned value as the prior state.
func ParseValues(v url.Values) ParsedQuery {
	q := NewParsedQuery()
	q.Author = strings.TrimSpace(v.Get("author"))
	q.CategoryID = strings.TrimSpace(v.Get("category_id"))
	q.DateFrom = strings.TrimSpace(v.Get("date_from"))
	q.DateTo = strings.TrimSpace(v.Get("date_to"))
	if o, ok := parseOrigin(v.Get("origin")); ok {
		q.Origin = o
	}
	q.MineOnly = strings.EqualFold(strings.TrimSpace(v.Get("mine")), "true")
	return q
}

// CategoryRef identifies a post category.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CategoryLookup maps a lowercased category name to its reference. It is
// owned by the caller and only read here.
type CategoryLookup map[string]CategoryRef

// Resolve looks a category up by name, ignoring case and surrounding space.
func (l CategoryLookup) Resolve(name string) (CategoryRef, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CategoryRef{}, false
	}
	ref, ok := l[name]
	return ref, ok
}

type directiveKind int

const (
	directiveAuthor directiveKind = iota
	directiveCategory
	directiveBefore
	directiveAfter
	directiveOrigin
	directiveMine
)

// directives is checked in order; the first match wins. exact directives
// must equal the whole token rather than prefix it.
var directives = []struct {
	kind   directiveKind
	prefix string
	exact  bool
}{
	{directiveAuthor, "author:", false},
	{directiveCategory, "category:", false},
	{directiveBefore, "before:", false},
	{directiveAfter, "after:", false},
	{directiveOrigin, "origin:", false},
	{directiveMine, "mine:true", true},
}

func matchDirective(text string) (directiveKind, string, bool) {
	for _, d := range directives {
		if d.exact {
			if strings.EqualFold(text, d.prefix) {
				return d.kind, "", true
			}
			continue
		}
		if len(text) >= len(d.prefix) && strings.EqualFold(text[:len(d.prefix)], d.prefix) {
			return d.kind, strings.TrimSpace(text[len(d.prefix):]), true
		}
	}
	return 0, "", false
}

// ExtractFilters applies the directives found in tokens on top of prior and
// collects everything else as free text. Filters not named by a directive
// keep their prior value; a directive seen twice keeps the later value.
// Directives that cannot be applied (unknown category, unsupported origin)
// are still removed from the free text. A value opened with a double quote
// runs to the token that closes it, so author:"Jane Doe" sets one author.
func ExtractFilters(tokens []Token, prior ParsedQuery, categories CategoryLookup) ParsedQuery {
	q := prior
	free := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		kind, raw, ok := matchDirective(tokens[i].Text)
		if !ok {
			free = append(free, tokens[i].String())
			continue
		}
		raw, absorbed := quotedValue(raw, tokens[i+1:])
		i += absorbed
		quoted := isQuoted(raw)
		value := strings.TrimSpace(unquote(raw))

		switch kind {
		case directiveAuthor:
			q.Author = value
		case directiveCategory:
			if quoted {
				if ref, found := categories.Resolve(value); found {
					q.CategoryID = ref.ID
				}
				continue
			}
			ref, consumed, found := resolveCategory(tokens[i+1:], value, categories)
			if found {
				q.CategoryID = ref.ID
			}
			i += consumed
		case directiveBefore:
			q.DateTo = value
		case directiveAfter:
			q.DateFrom = value
		case directiveOrigin:
			if o, ok := parseOrigin(value); ok && o != OriginAll {
				q.Origin = o
			}
		case directiveMine:
			q.MineOnly = true
		}
	}
	q.FreeText = strings.TrimSpace(strings.Join(free, " "))
	return q
}

// quotedValue extends a directive value that opens a double quote without
// closing it over the plain tokens of rest, up to and including the first
// one ending in a quote. It returns the joined value and the number of
// tokens absorbed. Without a closing token the value is returned as is.
func quotedValue(value string, rest []Token) (string, int) {
	if !strings.HasPrefix(value, string(quoteChar)) || isQuoted(value) {
		return value, 0
	}
	joined := value
	for j, tok := range rest {
		if tok.WasQuoted {
			break
		}
		joined += " " + tok.Text
		if strings.HasSuffix(tok.Text, string(quoteChar)) {
			return joined, j + 1
		}
	}
	return value, 0
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == quoteChar && s[len(s)-1] == quoteChar
}

// resolveCategory resolves name, extended over as many of the following
// plain tokens as still yield a known category, so an unquoted multi-word
// name such as "category:Intel Quick Updates" resolves. It returns how many
// of rest were absorbed into the name.
func resolveCategory(rest []Token, name string, categories CategoryLookup) (CategoryRef, int, bool) {
	ref, found := categories.Resolve(name)
	consumed := 0
	candidate := name
	for j, tok := range rest {
		if tok.WasQuoted {
			break
		}
		if _, _, isDirective := matchDirective(tok.Text); isDirective {
			break
		}
		candidate = strings.TrimSpace(candidate + " " + tok.Text)
		if longer, ok := categories.Resolve(candidate); ok {
			ref, found, consumed = longer, true, j+1
		}
	}
	return ref, consumed, found
}

func parseOrigin(s string) (Origin, bool) {
	switch Origin(strings.ToLower(strings.TrimSpace(s))) {
	case OriginWordPress:
		return OriginWordPress, true
	case OriginManual:
		return OriginManual, true
	case OriginAll:
		return OriginAll, true
	}
	return "", false
}
