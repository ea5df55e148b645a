package search

import (
	"math"
	"strings"
)

// tokensPerWord approximates sub-word tokenization of English text.
const tokensPerWord = 1.3

// EstimateTokens approximates the model token cost of s as
// round(words * 1.3), where words are whitespace-separated fields.
// It is a budget heuristic only, never an exact tokenizer.
func EstimateTokens(s string) int {
	return int(math.Round(float64(len(strings.Fields(s))) * tokensPerWord))
}
