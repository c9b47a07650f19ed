package ingest

import "strings"

// EstimateTokens gives a cheap token estimate: one per word for latin
// script, one per rune beyond ASCII.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
