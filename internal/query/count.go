package query

// CountMatches returns the total number of case-insensitive, non-overlapping
// occurrences of every term in text. Unlike Highlight it ignores word edges
// and counts matches inside longer words too, so "cat" counts three times
// in "cats category cats".
func CountMatches(text string, terms []string) int {
	if text == "" {
		return 0
	}
	total := 0
	for _, term := range terms {
		re := literalMatcher(term)
		if re == nil {
			continue
		}
		total += len(re.FindAllStringIndex(text, -1))
	}
	return total
}
