// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// Slug converts a free-form music style tag to its canonical form, so
// "Lo Fi", "lo_fi" and "LO-FI!" all name the same preference.
//
//	"Dark Ambient"  → "dark-ambient"
//	"synth/wave"    → "synth-wave"
//	"🎻 Strings!"   → "strings"
func Slug(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
