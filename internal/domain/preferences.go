package domain

import (
	"slices"
	"strings"

	"github.com/pagetune/pagetune-server/internal/util"
)

// MusicPreferences is a normalized set of music style tags such as
// "lofi" or "orchestral". An empty set means personalization is off.
type MusicPreferences []string

// NormalizePreferences slugs, de-duplicates and sorts tags.
func NormalizePreferences(tags []string) MusicPreferences {
	out := make(MusicPreferences, 0, len(tags))
	for _, tag := range tags {
		if tag = util.Slug(tag); tag != "" {
			out = append(out, tag)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Enabled reports whether personalization is configured.
func (p MusicPreferences) Enabled() bool {
	return len(p) > 0
}

// Key returns a stable string form usable as a cache key.
func (p MusicPreferences) Key() string {
	return strings.Join(p, ",")
}
