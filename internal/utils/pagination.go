// Package utils holds small helpers with no domain knowledge, shared by the
// HTTP layer for query-parameter parsing.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or not
// a valid integer. Inputs are not trimmed; " 42" takes the default.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ClampInt bounds n to the inclusive [lo, hi] range. Used to keep client
// supplied page sizes and search limits inside server policy.
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
