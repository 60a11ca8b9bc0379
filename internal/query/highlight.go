package query

import (
	"regexp"
	"sort"
	"unicode"
	"unicode/utf8"
)

// Segment is a contiguous piece of highlighted text. Concatenating the
// Text of every segment returned by Highlight yields the input unchanged.
type Segment struct {
	Text    string `json:"text"`
	Matched bool   `json:"matched"`
}

type span struct {
	start, end int
}

// Highlight marks occurrences of terms in text. Phrases are resolved first,
// in order, then words; a later match never overlaps a span already marked,
// so a phrase is never split by one of its own words. Word terms only match
// where they are not glued to other letters or digits: "cat" does not match
// inside "category". Matching is case-insensitive and the source casing is
// kept in the segments.
func Highlight(text string, terms HighlightTerms) []Segment {
	if text == "" || terms.Empty() {
		return []Segment{{Text: text}}
	}

	claimed := make([]span, 0)
	for _, phrase := range terms.Phrases {
		claimed = claimMatches(text, phrase, false, claimed)
	}
	for _, word := range terms.Words {
		claimed = claimMatches(text, word, true, claimed)
	}
	if len(claimed) == 0 {
		return []Segment{{Text: text}}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	segments := make([]Segment, 0, 2*len(claimed)+1)
	pos := 0
	for _, s := range claimed {
		if s.start > pos {
			segments = append(segments, Segment{Text: text[pos:s.start]})
		}
		segments = append(segments, Segment{Text: text[s.start:s.end], Matched: true})
		pos = s.end
	}
	if pos < len(text) {
		segments = append(segments, Segment{Text: text[pos:]})
	}
	return segments
}

// claimMatches appends every acceptable, non-overlapping occurrence of term
// in text to claimed.
func claimMatches(text, term string, wordBounded bool, claimed []span) []span {
	re := literalMatcher(term)
	if re == nil {
		return claimed
	}
	pos := 0
	for pos < len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil || loc[0] == loc[1] {
			break
		}
		m := span{start: pos + loc[0], end: pos + loc[1]}
		if (wordBounded && !atWordEdges(text, m)) || overlaps(claimed, m) {
			_, size := utf8.DecodeRuneInString(text[m.start:])
			pos = m.start + size
			continue
		}
		claimed = append(claimed, m)
		pos = m.end
	}
	return claimed
}

func overlaps(claimed []span, m span) bool {
	for _, c := range claimed {
		if m.start < c.end && c.start < m.end {
			return true
		}
	}
	return false
}

// atWordEdges reports whether the match is not glued to a word character on
// either side. A side whose own edge character is not a word character
// (as in "c++") is not constrained.
func atWordEdges(text string, m span) bool {
	first, _ := utf8.DecodeRuneInString(text[m.start:])
	if isWordRune(first) && m.start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:m.start])
		if isWordRune(before) {
			return false
		}
	}
	last, _ := utf8.DecodeLastRuneInString(text[:m.end])
	if isWordRune(last) && m.end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[m.end:])
		if isWordRune(after) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// literalMatcher compiles a case-insensitive matcher for term taken
// literally. It returns nil for an empty term.
func literalMatcher(term string) *regexp.Regexp {
	if term == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
}
