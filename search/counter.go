package search

import "strings"

// CountOccurrences returns the number of non-overlapping literal matches of
// term in text, scanning left to right and resuming after each match, so
// "aa" occurs twice in "aaaa".
//
// An empty term never matches; the result is 0 for every text.
func CountOccurrences(text, term string) int {
	if term == "" {
		return 0
	}
	return strings.Count(text, term)
}
