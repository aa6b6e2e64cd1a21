package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
)

func TestTrackCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := newTrackCache(2)
	require.NoError(t, err)

	a := chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 0}
	b := chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 1}
	d := chaptersync.TrackRequest{DocumentID: "doc-2", ChapterIndex: 0}

	c.add(a, "a.mp3")
	c.add(b, "b.mp3")
	_, _ = c.get(a) // a is now most recent
	c.add(d, "d.mp3")

	_, ok := c.get(b)
	assert.False(t, ok, "b should have been evicted")
	url, ok := c.get(a)
	assert.True(t, ok)
	assert.Equal(t, "a.mp3", url)
}

func TestTrackCache_PurgeDocument(t *testing.T) {
	c, err := newTrackCache(10)
	require.NoError(t, err)

	c.add(chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 0}, "x")
	c.add(chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 1}, "y")
	c.add(chaptersync.TrackRequest{DocumentID: "doc-10", ChapterIndex: 0}, "z")

	assert.Equal(t, 2, c.purgeDocument("doc-1"))
	assert.Equal(t, 1, c.len())
}

func TestCacheKey_IncludesPreferences(t *testing.T) {
	a := chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 3, Preferences: []string{"lofi"}}
	b := chaptersync.TrackRequest{DocumentID: "doc-1", ChapterIndex: 3}

	assert.NotEqual(t, cacheKey(a), cacheKey(b))
	assert.Equal(t, "doc-1#3|lofi", cacheKey(a))
}
