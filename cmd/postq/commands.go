package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/plaintext"
	"github.com/spf13/cobra"
)

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <query>",
		Short: "Show the filters and highlight terms a search string produces",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, terms, err := opts.interpret(strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{
					"query":   q,
					"terms":   terms,
					"filters": q.Applied(),
					"params":  q.Values().Encode(),
				})
			}
			printParsed(out, q, terms)
			return nil
		},
	}
}

func newHighlightCmd(opts *options) *cobra.Command {
	var (
		queryStr string
		html     bool
		plain    bool
	)
	cmd := &cobra.Command{
		Use:   "highlight [text]",
		Short: "Mark the terms of --query in text (read from stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, terms, err := prepare(cmd, opts, queryStr, html, args)
			if err != nil {
				return err
			}
			segments := query.Highlight(text, terms)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{"terms": terms, "segments": segments})
			}
			fmt.Fprintln(out, render(segments, plain || !isTerminal(out)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&queryStr, "query", "q", "", "search string to take highlight terms from")
	cmd.Flags().BoolVar(&html, "html", false, "strip HTML from the text first")
	cmd.Flags().BoolVar(&plain, "plain", false, "mark matches with [[ ]] instead of colour")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newCountCmd(opts *options) *cobra.Command {
	var (
		queryStr string
		html     bool
	)
	cmd := &cobra.Command{
		Use:   "count [text]",
		Short: "Count case-insensitive occurrences of the terms of --query in text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, terms, err := prepare(cmd, opts, queryStr, html, args)
			if err != nil {
				return err
			}
			n := query.CountMatches(text, terms.All())
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{"terms": terms, "matches": n})
			}
			fmt.Fprintln(out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&queryStr, "query", "q", "", "search string to take terms from")
	cmd.Flags().BoolVar(&html, "html", false, "strip HTML from the text first")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

// prepare reads the text argument or stdin and derives terms from the
// query string.
func prepare(cmd *cobra.Command, opts *options, queryStr string, html bool, args []string) (string, query.HighlightTerms, error) {
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", query.HighlightTerms{}, fmt.Errorf("reading text from stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	}
	if html {
		text = plaintext.Strip(text)
	}
	_, terms, err := opts.interpret(queryStr)
	if err != nil {
		return "", query.HighlightTerms{}, err
	}
	return text, terms, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
