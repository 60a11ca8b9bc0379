package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/query"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type options struct {
	categoriesFile string
	jsonOutput     bool
	prior          query.ParsedQuery
	priorOrigin    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "postq",
		Short:         "Interpret and highlight post search queries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.categoriesFile, "categories", "", "YAML file mapping category names to ids")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")
	flags.StringVar(&opts.prior.Author, "prior-author", "", "author filter already in force")
	flags.StringVar(&opts.prior.CategoryID, "prior-category", "", "category id already in force")
	flags.StringVar(&opts.prior.DateFrom, "prior-after", "", "after: date already in force")
	flags.StringVar(&opts.prior.DateTo, "prior-before", "", "before: date already in force")
	flags.StringVar(&opts.priorOrigin, "prior-origin", "all", "origin already in force (all, wordpress, manual)")
	flags.BoolVar(&opts.prior.MineOnly, "prior-mine", false, "restrict to own posts already in force")

	root.AddCommand(newParseCmd(opts), newHighlightCmd(opts), newCountCmd(opts))
	return root
}

// priorState validates the --prior-* flags.
func (o *options) priorState() (query.ParsedQuery, error) {
	prior := o.prior
	switch origin := query.Origin(strings.ToLower(strings.TrimSpace(o.priorOrigin))); origin {
	case "", query.OriginAll:
		prior.Origin = query.OriginAll
	case query.OriginWordPress, query.OriginManual:
		prior.Origin = origin
	default:
		return query.ParsedQuery{}, fmt.Errorf("invalid --prior-origin %q: want all, wordpress or manual", o.priorOrigin)
	}
	return prior, nil
}

// lookup reads the --categories file. The file maps names to ids:
//
//	Intel Quick Updates: 5
//	Border: 9
func (o *options) lookup() (query.CategoryLookup, error) {
	lookup := query.CategoryLookup{}
	if o.categoriesFile == "" {
		return lookup, nil
	}
	data, err := os.ReadFile(o.categoriesFile)
	if err != nil {
		return nil, fmt.Errorf("reading categories file: %w", err)
	}
	return parseCategories(data)
}

func parseCategories(data []byte) (query.CategoryLookup, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing categories file: %w", err)
	}
	lookup := make(query.CategoryLookup, len(raw))
	for name, id := range raw {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if key == "" || id == "" {
			continue
		}
		if existing, dup := lookup[key]; dup {
			return nil, fmt.Errorf("category %q listed twice (ids %s and %s)", name, existing.ID, id)
		}
		lookup[key] = query.CategoryRef{ID: id, Name: name}
	}
	return lookup, nil
}

func (o *options) interpret(input string) (query.ParsedQuery, query.HighlightTerms, error) {
	prior, err := o.priorState()
	if err != nil {
		return query.ParsedQuery{}, query.HighlightTerms{}, err
	}
	lookup, err := o.lookup()
	if err != nil {
		return query.ParsedQuery{}, query.HighlightTerms{}, err
	}
	q, terms := query.Interpret(input, prior, lookup)
	return q, terms, nil
}
