package query

import "strings"

// HighlightTerms are the free-text terms to mark in result text. Phrases
// contain internal whitespace and match as a contiguous span; words match
// only at word edges.
type HighlightTerms struct {
	Phrases []string `json:"phrases"`
	Words   []string `json:"words"`
}

// Empty reports whether there is nothing to highlight.
func (h HighlightTerms) Empty() bool {
	return len(h.Phrases) == 0 && len(h.Words) == 0
}

// All returns phrases followed by words, the flat list CountMatches takes.
func (h HighlightTerms) All() []string {
	all := make([]string, 0, len(h.Phrases)+len(h.Words))
	all = append(all, h.Phrases...)
	return append(all, h.Words...)
}

// Classify splits the free text left after ExtractFilters into phrase and
// word terms. Quoted phrases are recognised again with the tokenizer's
// quoting rule and kept exactly as typed, inner spacing included. A term
// containing a space is a phrase. Anything still containing a colon is a
// directive fragment and is dropped.
func Classify(freeText string) HighlightTerms {
	terms := HighlightTerms{Phrases: []string{}, Words: []string{}}
	for _, tok := range Tokenize(freeText) {
		if strings.Contains(tok.Text, ":") {
			continue
		}
		if strings.Contains(tok.Text, " ") {
			terms.Phrases = append(terms.Phrases, tok.Text)
		} else {
			terms.Words = append(terms.Words, tok.Text)
		}
	}
	return terms
}

// Interpret runs the whole pipeline for one search string: tokenize,
// extract directives on top of prior, then classify the remaining free
// text.
func Interpret(input string, prior ParsedQuery, categories CategoryLookup) (ParsedQuery, HighlightTerms) {
	q := ExtractFilters(Tokenize(input), prior, categories)
	return q, Classify(q.FreeText)
}
