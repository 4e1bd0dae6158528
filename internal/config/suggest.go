package config

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the candidate closest to input, or "" when nothing is
// close enough to be a plausible typo.
func Suggest(input string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, cand := range candidates {
		if strings.EqualFold(input, cand) {
			return cand
		}
		dist := levenshtein.ComputeDistance(strings.ToLower(input), strings.ToLower(cand))
		if dist > levenshteinLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && cand < best) {
			best = cand
			bestDist = dist
		}
	}
	return best
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
