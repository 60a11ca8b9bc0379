package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{"empty", "", []Token{}},
		{"whitespace only", "  \t \n ", []Token{}},
		{"plain words", "  traffic   stop ", []Token{{Text: "traffic"}, {Text: "stop"}}},
		{
			name:  "quoted phrase",
			input: `foo "traffic stop" bar`,
			want:  []Token{{Text: "foo"}, {Text: "traffic stop", WasQuoted: true}, {Text: "bar"}},
		},
		{
			name:  "unterminated quote is literal",
			input: `say "hello world`,
			want:  []Token{{Text: "say"}, {Text: `"hello`}, {Text: "world"}},
		},
		{
			name:  "empty quotes produce nothing",
			input: `a "" b`,
			want:  []Token{{Text: "a"}, {Text: "b"}},
		},
		{
			name:  "quoted value inside directive",
			input: `category:"Intel Quick Updates" x`,
			want:  []Token{{Text: `category:"Intel`}, {Text: "Quick"}, {Text: `Updates"`}, {Text: "x"}},
		},
		{
			name:  "quote inside a word is literal",
			input: `he said"stop now" loudly`,
			want:  []Token{{Text: "he"}, {Text: `said"stop`}, {Text: `now"`}, {Text: "loudly"}},
		},
		{
			name:  "phrase glued to a following word",
			input: `"a b"c`,
			want:  []Token{{Text: "a b", WasQuoted: true}, {Text: "c"}},
		},
		{
			name:  "directive is a plain token",
			input: "author:Smith mine:true",
			want:  []Token{{Text: "author:Smith"}, {Text: "mine:true"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []string{
		`routine "traffic stop" reported`,
		`  "a b"   c  "d   e" `,
		`author:jones "border crossing" after:2024-01-01`,
	}
	for _, in := range inputs {
		parts := make([]string, 0)
		for _, tok := range Tokenize(in) {
			parts = append(parts, tok.String())
		}
		assert.Equal(t, normalizeSpace(in), normalizeSpace(strings.Join(parts, " ")), in)
	}
}

func TestTokenizeNeverEmpty(t *testing.T) {
	for _, tok := range Tokenize(`" " x  "  " y ""`) {
		assert.NotEmpty(t, strings.TrimSpace(tok.Text))
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
