package chunker

import "unicode/utf8"

// CharsPerToken is the divisor used by EstimateTokens.
const CharsPerToken = 4

// EstimateTokens gives a rough token count using the ~4 chars/token heuristic.
// It is not a tokenizer; callers that budget provider calls must use this same
// function so the numbers agree.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}
