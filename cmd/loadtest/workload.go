package main

import (
	"fmt"
	"net/url"
	"strconv"
)

// scenario is one kind of search the load test sends. Prior holds filter
// state carried in from an earlier search, the way the results page sends it.
type scenario struct {
	Name   string
	Query  string
	Prior  url.Values
	Page   int
	Weight int
}

// defaultWorkload mixes the search box shapes seen on the results page:
// plain words, quoted phrases, directives with multi-word values, searches
// that only filter, and follow-up searches refining an earlier filter.
func defaultWorkload() []scenario {
	return []scenario{
		{Name: "words", Query: "border crossing", Weight: 4},
		{Name: "words-short", Query: "cat", Weight: 2},
		{Name: "phrase", Query: `"traffic stop" reported`, Weight: 3},
		{Name: "phrase-only", Query: `"port of entry"`, Weight: 2},
		{Name: "metachars", Query: "$5.00 (approx)", Weight: 1},
		{Name: "category", Query: "category:Intel Quick Updates protest", Weight: 2},
		{Name: "quoted-author", Query: `author:"Jane Doe" riot`, Weight: 2},
		{Name: "date-range", Query: "after:2024-01-01 before:2024-12-31 shipment", Weight: 2},
		{Name: "origin", Query: "origin:wordpress convoy", Weight: 1},
		{Name: "filter-only", Query: "category:Border origin:manual", Weight: 1},
		{Name: "mine", Query: "mine:true", Weight: 2},
		{Name: "refine", Query: "checkpoint", Prior: url.Values{"author": {"smith"}, "origin": {"manual"}}, Weight: 2},
		{Name: "page-2", Query: "border", Page: 2, Weight: 1},
	}
}

// schedule expands weights into a fixed rotation of scenario indexes so
// every worker cycles through the same mix.
func schedule(scenarios []scenario) []int {
	order := make([]int, 0, len(scenarios))
	for i, sc := range scenarios {
		for j := 0; j < max(sc.Weight, 1); j++ {
			order = append(order, i)
		}
	}
	return order
}

// searchURL builds the GET request for sc against base.
func searchURL(base string, sc scenario, limit int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	u.Path = "/api/v1/posts/search"
	params := url.Values{}
	for k, vs := range sc.Prior {
		params[k] = append([]string(nil), vs...)
	}
	params.Set("q", sc.Query)
	params.Set("limit", strconv.Itoa(limit))
	if sc.Page > 1 {
		params.Set("page", strconv.Itoa(sc.Page))
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
