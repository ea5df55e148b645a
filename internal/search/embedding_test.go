package search

import (
	"strings"
	"testing"
)

func TestPlaceholderEmbedding(t *testing.T) {
	got := PlaceholderEmbedding("The Sky  is BLUE")
	want := []int{3, 3, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("len=%d; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v; want %v", got, want)
		}
	}

	if e := PlaceholderEmbedding(""); len(e) != 0 {
		t.Fatalf("empty text should give empty vector, got %v", e)
	}

	long := PlaceholderEmbedding(strings.Repeat("abc ", 50))
	if len(long) != 20 {
		t.Fatalf("vector must be capped at 20, got %d", len(long))
	}
}
