package search

import "strings"

// embeddingWords caps how many words contribute to a placeholder embedding.
const embeddingWords = 20

// PlaceholderEmbedding derives a stand-in vector for a chunk: the byte lengths
// of its first 20 lower-cased words. It is stored for forward compatibility
// and is never used for scoring.
func PlaceholderEmbedding(text string) []int {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > embeddingWords {
		words = words[:embeddingWords]
	}
	out := make([]int, len(words))
	for i, w := range words {
		out[i] = len(w)
	}
	return out
}
