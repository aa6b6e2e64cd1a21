package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePreferences(t *testing.T) {
	prefs := NormalizePreferences([]string{" Lofi", "orchestral", "", "LOFI", "ambient "})

	assert.Equal(t, MusicPreferences{"ambient", "lofi", "orchestral"}, prefs)
	assert.True(t, prefs.Enabled())
	assert.Equal(t, "ambient,lofi,orchestral", prefs.Key())
}

func TestNormalizePreferences_Slugs(t *testing.T) {
	prefs := NormalizePreferences([]string{"Lo Fi", "lo_fi", "Dark Ambient!"})

	assert.Equal(t, MusicPreferences{"dark-ambient", "lo-fi"}, prefs)
}

func TestNormalizePreferences_Empty(t *testing.T) {
	prefs := NormalizePreferences([]string{"  ", ""})

	assert.False(t, prefs.Enabled())
	assert.Empty(t, prefs.Key())
	assert.False(t, NormalizePreferences(nil).Enabled())
}
