package chunker

import "unicode/utf8"

// CharsPerToken is the fixed heuristic ratio used by EstimateTokens.
const CharsPerToken = 4

// EstimateTokens gives a rough token count using the ~4 chars/token heuristic.
// Exact tokenization is not required for chunking.
// The estimate never decreases as text grows.
func EstimateTokens(text string) int {
	return tokensForRunes(utf8.RuneCountInString(text))
}

func tokensForRunes(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + CharsPerToken - 1) / CharsPerToken
}
