// Package fuzzy scores free-text author/source-title filters against a
// cached set of known names, mirroring rapidfuzz.process.extractOne's
// best-of-set scoring rather than a prefix or substring test.
package fuzzy

import (
	fuzzywuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Match is the best-scoring candidate for a query string.
type Match struct {
	Candidate string
	Score     int // 0-100, higher is closer
}

// BestMatch scores query against every candidate and returns the
// highest-scoring one. Returns ok=false if candidates is empty.
func BestMatch(query string, candidates []string) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	result, err := fuzzywuzzy.ExtractOne(query, candidates)
	if err != nil || result == nil {
		return Match{}, false
	}
	return Match{Candidate: result.Match, Score: result.Score}, true
}
