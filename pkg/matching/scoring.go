package matching

import (
	"github.com/antzucaro/matchr"
)

// Scorer provides the string comparison algorithms used for payee names
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Levenshtein returns the normalized edit similarity 1 - distance/max(len(a), len(b)).
// Identical strings score 1 and an empty string against a non-empty one scores 0.
// Inputs are expected to be lowercased already.
func (s *Scorer) Levenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

// LevenshteinDistance returns the rune edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	return levenshteinDistance([]rune(a), []rune(b))
}

func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// two rows of the DP table are enough
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)
	for j := range prevRow {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// JaroWinkler returns the Jaro-Winkler similarity between two strings
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return matchr.JaroWinkler(a, b, false)
}

// PhoneticMatch reports whether two words share a Double Metaphone code
func (s *Scorer) PhoneticMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a1, a2 := matchr.DoubleMetaphone(a)
	b1, b2 := matchr.DoubleMetaphone(b)
	for _, x := range []string{a1, a2} {
		if x == "" {
			continue
		}
		if x == b1 || x == b2 {
			return true
		}
	}
	return false
}
