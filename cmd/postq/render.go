package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	matchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E2E")).Background(lipgloss.Color("#F9E2AF")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func render(segments []query.Segment, plain bool) string {
	var b strings.Builder
	for _, s := range segments {
		switch {
		case !s.Matched:
			b.WriteString(s.Text)
		case plain:
			b.WriteString("[[" + s.Text + "]]")
		default:
			b.WriteString(matchStyle.Render(s.Text))
		}
	}
	return b.String()
}

func printParsed(w io.Writer, q query.ParsedQuery, terms query.HighlightTerms) {
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), valueStyle.Render(value))
	}
	line("free text", q.FreeText)
	line("author", q.Author)
	line("category", q.CategoryID)
	line("after", q.DateFrom)
	line("before", q.DateTo)
	line("origin", string(q.EffectiveOrigin()))
	line("mine", fmt.Sprint(q.MineOnly))
	line("phrases", strings.Join(quoteAll(terms.Phrases), " "))
	line("words", strings.Join(terms.Words, " "))
}

func quoteAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, `"`+s+`"`)
	}
	return out
}
