package utils

import (
	"math"
	"strings"
)

func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e != "" && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Round2 rounds to two decimals for display values in published snapshots.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// StringSet builds a membership set from a list of addresses.
func StringSet(in ...[]string) map[string]bool {
	out := map[string]bool{}
	for _, list := range in {
		for _, e := range list {
			if e != "" {
				out[e] = true
			}
		}
	}
	return out
}
