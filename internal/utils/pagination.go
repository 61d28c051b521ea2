// Package utils holds small parsing helpers for query parameters.
package utils

import "strconv"

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampLimit parses a "limit" query value and bounds it to [1, max].
// Missing or malformed values yield def.
func ClampLimit(s string, def, max int) int {
	n := AtoiDefault(s, def)
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}
