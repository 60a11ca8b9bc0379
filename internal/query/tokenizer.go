// Package query interprets the advanced search box of the results page.
//
// A raw search string mixes free text, double-quoted phrases and directives
// (author:, category:, before:, after:, origin:, mine:true). Tokenize splits
// the string, ExtractFilters folds the directives into a ParsedQuery on top
// of the previous filter state, Classify turns the remaining free text into
// highlight terms, and Highlight / CountMatches decorate already-fetched
// plain text with those terms.
//
// Every function in this package is pure: no I/O, no shared state, and no
// error returns. Malformed input always degrades to a defined result.
package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const quoteChar = '"'

// Token is one unit of the search string.
type Token struct {
	Text      string `json:"text"`
	WasQuoted bool   `json:"was_quoted"`
}

// String renders the token the way it was typed, re-adding the quotes of a
// quoted phrase.
func (t Token) String() string {
	if t.WasQuoted {
		return string(quoteChar) + t.Text + string(quoteChar)
	}
	return t.Text
}

// Tokenize splits input into tokens, left to right. A double quote at the
// start of a token opens a phrase only when a closing quote follows
// somewhere later in the input; otherwise it is an ordinary character.
// Every other token is a maximal run of non-whitespace, quotes included, so
// a quote in the middle of a word never opens a phrase. Runs of whitespace
// separate tokens and never produce one.
func Tokenize(input string) []Token {
	tokens := make([]Token, 0)
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		if r == quoteChar {
			if end := closingQuote(input, i); end >= 0 {
				text := input[i+1 : end]
				i = end + 1
				if strings.TrimSpace(text) != "" {
					tokens = append(tokens, Token{Text: text, WasQuoted: true})
				}
				continue
			}
		}
		start := i
		i = scanWord(input, i)
		tokens = append(tokens, Token{Text: input[start:i]})
	}
	return tokens
}

// scanWord returns the end of the non-whitespace run starting at i.
func scanWord(input string, i int) int {
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if unicode.IsSpace(r) {
			return i
		}
		i += size
	}
	return i
}

// closingQuote returns the byte offset of the quote closing the one at
// open, or -1.
func closingQuote(input string, open int) int {
	end := strings.IndexByte(input[open+1:], quoteChar)
	if end < 0 {
		return -1
	}
	return open + 1 + end
}

// unquote strips one pair of surrounding double quotes.
func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
