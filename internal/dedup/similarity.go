package dedup

import (
	"math"
	"regexp"
	"strings"
)

// Policy constants. These mirror long-standing product behavior: changing them
// changes which saves trigger a duplicate warning, so they are deliberately
// not configurable.
const (
	// TitleSimilarityThreshold is the score at/above which two titles are
	// considered the same real-world thing.
	TitleSimilarityThreshold = 0.8

	// ProximityThresholdMeters is the distance at/below which two places are
	// considered the same venue.
	ProximityThresholdMeters = 50.0

	// lengthRatioCutoff rejects title pairs whose relative length difference
	// exceeds this ratio before running the edit-distance matrix.
	lengthRatioCutoff = 0.7

	// earthRadiusMeters is the mean Earth radius used by the haversine formula.
	earthRadiusMeters = 6371000.0
)

// nonTitleRuneRE strips everything that is neither alphanumeric nor a space.
var nonTitleRuneRE = regexp.MustCompile(`[^a-z0-9 ]+`)

// normalizeTitle lowercases, strips punctuation, collapses whitespace, and
// trims, so that "Joe's  Pizza!" and "joes pizza" compare equal.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = nonTitleRuneRE.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// TitleSimilarity scores how alike two titles are, in [0,1]. Both inputs are
// normalized first; identical normalized forms score 1, an empty side scores
// 0, and pairs whose lengths differ by more than the cutoff ratio score 0
// without paying for the edit-distance matrix. Otherwise the score is
// 1 - distance/max(len(a), len(b)) using classic Levenshtein distance.
//
// The function is pure, symmetric, and total.
func TitleSimilarity(a, b string) float64 {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	ra, rb := []rune(na), []rune(nb)
	la, lb := len(ra), len(rb)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if math.Abs(float64(la-lb))/float64(maxLen) > lengthRatioCutoff {
		return 0
	}

	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes the classic edit distance via the full
// dynamic-programming matrix (two rolling rows).
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// GeoDistanceMeters returns the great-circle distance between two points given
// in decimal degrees, using the haversine formula.
func GeoDistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLng*sinLng

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
