// Package plaintext turns stored post HTML into the plain text that search
// terms are highlighted on.
package plaintext

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// blockBoundary matches tags after which rendered text would break, so
// adjacent blocks do not fuse into one word once tags are removed.
var blockBoundary = regexp.MustCompile(`(?i)<\s*(?:br|hr|/?p|/?div|/?li|/?h[1-6]|/?tr|/?td|/?th|/?blockquote|/?section|/?article)\b[^>]*>`)

// The strict policy drops every tag and the content of script, style and
// similar elements. bluemonday policies are safe for concurrent use.
var policy = bluemonday.StrictPolicy()

// Strip removes markup from s, decodes entities and collapses whitespace.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	s = blockBoundary.ReplaceAllString(s, " $0 ")
	s = policy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
