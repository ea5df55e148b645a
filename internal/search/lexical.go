package search

import (
	"iter"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultRetrievalLimit is how many matching chunks a retrieval returns when
// the caller does not choose a limit.
const DefaultRetrievalLimit = 3

// Terms is a case-folded, de-duplicated set of query words.
type Terms []string

// QueryTerms splits query on whitespace and case-folds each word. Duplicate
// words are dropped, first occurrence wins. A blank query yields no terms.
func QueryTerms(query string) Terms {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(fields))
	out := make(Terms, 0, len(fields))
	for _, f := range fields {
		w := fold.String(f)
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Match reports whether any term occurs as a substring of text, ignoring case.
// Partial words count: "sky" matches "skyline".
func (t Terms) Match(text string) bool {
	if len(t) == 0 || text == "" {
		return false
	}
	folded := cases.Fold().String(text)
	for _, w := range t {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

// FirstMatches returns, in enumeration order, the first limit chunks that
// match terms. Enumeration stops as soon as limit matches are found, so
// chunks is never consumed further than necessary. A non-positive limit
// means DefaultRetrievalLimit.
func FirstMatches(terms Terms, chunks iter.Seq[string], limit int) []string {
	if limit <= 0 {
		limit = DefaultRetrievalLimit
	}
	if len(terms) == 0 {
		return nil
	}
	var out []string
	for c := range chunks {
		if !terms.Match(c) {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}
