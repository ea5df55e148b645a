// Package search holds the text primitives behind document retrieval:
// fixed-size chunking, a word-count token estimate, the placeholder
// embedding stored alongside each chunk, and case-insensitive lexical
// matching of query terms against chunk text.
//
// Everything here is pure and deterministic. There is no logging and no I/O;
// callers decide where text comes from and what to do with matches.
package search

import (
	"iter"
	"unicode/utf8"
)

// DefaultChunkSize is the chunk length, in characters, used when a caller
// passes a non-positive size.
const DefaultChunkSize = 500

// Chunks yields contiguous, non-overlapping slices of text, each size
// characters (runes) long except possibly the last. Concatenating the yielded
// slices reproduces text exactly. Empty text yields nothing.
//
// The sequence is lazy: slicing stops as soon as the consumer stops ranging.
func Chunks(text string, size int) iter.Seq[string] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func(string) bool) {
		rest := text
		for len(rest) > 0 {
			end := 0
			for n := 0; n < size && end < len(rest); n++ {
				_, w := utf8.DecodeRuneInString(rest[end:])
				end += w
			}
			if !yield(rest[:end]) {
				return
			}
			rest = rest[end:]
		}
	}
}

// ChunkText collects Chunks(text, size) into a slice.
func ChunkText(text string, size int) []string {
	var out []string
	for c := range Chunks(text, size) {
		out = append(out, c)
	}
	return out
}
