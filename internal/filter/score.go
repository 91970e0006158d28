package filter

import "strings"

// Score rates how well text answers query. Each query word found as a
// substring of the text adds 1; the whole query appearing verbatim adds the
// query's word count on top, so a phrase hit always outranks scattered hits.
// Scores only order candidates for one query.
func Score(text, query string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	if text == "" || query == "" {
		return 0
	}
	text = strings.ToLower(text)
	words := strings.Fields(query)

	score := 0
	for _, word := range words {
		if strings.Contains(text, word) {
			score++
		}
	}
	if strings.Contains(text, query) {
		score += len(words)
	}
	return score
}
