package music

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pagetune/pagetune-server/internal/chaptersync"
)

// trackCache remembers generated track URLs so returning to a chapter does
// not pay for a second generation. It is safe for concurrent use.
type trackCache struct {
	lru *lru.Cache[string, string]
}

func newTrackCache(size int) (*trackCache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &trackCache{lru: c}, nil
}

func cacheKey(req chaptersync.TrackRequest) string {
	var b strings.Builder
	b.WriteString(req.DocumentID)
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(req.ChapterIndex))
	b.WriteByte('|')
	b.WriteString(req.Preferences.Key())
	return b.String()
}

func (c *trackCache) get(req chaptersync.TrackRequest) (string, bool) {
	return c.lru.Get(cacheKey(req))
}

func (c *trackCache) add(req chaptersync.TrackRequest, url string) {
	c.lru.Add(cacheKey(req), url)
}

// purgeDocument drops every cached track of a document, for when its
// chapters are replaced and indexes no longer mean the same chapter.
func (c *trackCache) purgeDocument(documentID string) int {
	prefix := documentID + "#"
	n := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
			n++
		}
	}
	return n
}

func (c *trackCache) len() int {
	return c.lru.Len()
}
